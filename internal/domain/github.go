package domain

// ImportRequest is the body of an import from GitHub
type ImportRequest struct {
	RepoURL string `json:"repo_url" validate:"required"`
}

// ImportSummary describes a finished import
type ImportSummary struct {
	Repo         string `json:"repo"`
	ImportedFrom string `json:"imported_from"`
	Files        int    `json:"files"`
}

// PublishRequest is the body of a publish to GitHub
type PublishRequest struct {
	RepoName    string `json:"repo_name" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=350"`
	Private     bool   `json:"private,omitempty"`
}

// PublishSummary describes the repository created by a publish
type PublishSummary struct {
	Repo       string `json:"repo"`
	HTMLURL    string `json:"html_url"`
	CloneURL   string `json:"clone_url"`
	Visibility string `json:"visibility"`
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/sirupsen/logrus"
)

// ImportResponse is the body of a successful import
type ImportResponse struct {
	OK bool `json:"ok"`
	*domain.ImportSummary
}

// PublishResponse is the body of a successful publish
type PublishResponse struct {
	OK bool `json:"ok"`
	*domain.PublishSummary
}

// ImportGitHub copies a public repository into the project
func (p *Projects) ImportGitHub(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	fields := logrus.Fields{"op": "import_github", "projectID": projectID}

	req := &domain.ImportRequest{}
	if err := p.decode(r, req); err != nil {
		p.writeError(rw, err, fields)
		return
	}
	if err := p.check(req); err != nil {
		p.writeError(rw, err, fields)
		return
	}

	summary, err := p.importer.Import(r.Context(), projectID, req.RepoURL)
	if err != nil {
		fields["repo_url"] = req.RepoURL
		p.writeError(rw, err, fields)
		return
	}
	writeJSON(rw, http.StatusOK, &ImportResponse{OK: true, ImportSummary: summary})
}

// PublishGitHub creates a repository from the project files
func (p *Projects) PublishGitHub(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	fields := logrus.Fields{"op": "publish_github", "projectID": projectID}

	req := &domain.PublishRequest{}
	if err := p.decode(r, req); err != nil {
		p.writeError(rw, err, fields)
		return
	}
	if err := p.check(req); err != nil {
		p.writeError(rw, err, fields)
		return
	}

	summary, err := p.publisher.Publish(r.Context(), projectID, *req)
	if err != nil {
		fields["repo_name"] = req.RepoName
		p.writeError(rw, err, fields)
		return
	}
	writeJSON(rw, http.StatusOK, &PublishResponse{OK: true, PublishSummary: summary})
}

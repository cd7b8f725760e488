package github

import (
	"regexp"
	"strings"

	"github.com/iantal/miniapp/internal/domain"
)

var repoURLPattern = regexp.MustCompile(`github\.com[/:]+([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

// ParseRepoURL extracts owner and repository name from anything that looks
// like a GitHub repository URL, e.g. https://github.com/o/r/tree/main,
// github.com/o/r.git or git@github.com:o/r.git
func ParseRepoURL(raw string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", &domain.ErrInvalidInput{Field: "repo_url", Message: "expected a GitHub repository URL like https://github.com/owner/repo"}
	}

	owner = m[1]
	repo = strings.TrimSuffix(m[2], ".git")
	if owner == "." || owner == ".." || repo == "" || repo == "." || repo == ".." {
		return "", "", &domain.ErrInvalidInput{Field: "repo_url", Message: "no owner/repository pair found"}
	}
	return owner, repo, nil
}

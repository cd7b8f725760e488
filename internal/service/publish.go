package service

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/iantal/miniapp/internal/config"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/github"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// MaxPublishFileSize is the largest file the contents API accepts from us
const MaxPublishFileSize = 900000

const maxRepoName = 100

var (
	repoNameSpaces     = regexp.MustCompile(`\s+`)
	repoNameDisallowed = regexp.MustCompile(`[^a-z0-9._-]`)
)

// RepoPublisher is the part of the GitHub API a publish needs
type RepoPublisher interface {
	CreateRepo(ctx context.Context, name, description string, private bool) (*github.Repository, error)
	PutContent(ctx context.Context, owner, repo, path string, content []byte, message string) error
}

// Publisher pushes a project into a new GitHub repository
type Publisher struct {
	l        *util.StandardLogger
	projects *ProjectManager
	store    files.Storage
	gh       RepoPublisher
	activity ActivityRecorder
	cfg      config.GitHubConfig
}

func NewPublisher(log *util.StandardLogger, projects *ProjectManager, store files.Storage, gh RepoPublisher, activity ActivityRecorder, cfg config.GitHubConfig) *Publisher {
	return &Publisher{
		l:        log,
		projects: projects,
		store:    store,
		gh:       gh,
		activity: activity,
		cfg:      cfg,
	}
}

// SanitizeRepoName lower-cases name and keeps only characters GitHub
// accepts in repository names
func SanitizeRepoName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = repoNameSpaces.ReplaceAllString(n, "-")
	n = repoNameDisallowed.ReplaceAllString(n, "")
	n = strings.Trim(n, "-.")
	if len(n) > maxRepoName {
		n = strings.Trim(n[:maxRepoName], "-.")
	}
	return n
}

type publishFile struct {
	rel  string
	full string
}

// Publish creates a repository and commits every project file to it, one
// commit per file. There is no rollback: on failure the repository keeps
// the files committed so far.
func (p *Publisher) Publish(ctx context.Context, projectID string, req domain.PublishRequest) (*domain.PublishSummary, error) {
	if p.cfg.Token == "" {
		return nil, &domain.ErrConfiguration{Setting: "GITHUB_TOKEN"}
	}
	if p.cfg.Owner == "" {
		return nil, &domain.ErrConfiguration{Setting: "GITHUB_OWNER"}
	}

	name := SanitizeRepoName(req.RepoName)
	if name == "" {
		return nil, &domain.ErrInvalidInput{Field: "repo_name", Message: "empty after removing unsupported characters"}
	}

	unlock, err := p.projects.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var toUpload []publishFile
	err = p.store.Walk(projectID, func(rel, full string, info os.FileInfo) error {
		if info.Size() > MaxPublishFileSize {
			return &domain.ErrPayloadTooLarge{Path: rel, Size: info.Size(), Limit: MaxPublishFileSize}
		}
		toUpload = append(toUpload, publishFile{rel: rel, full: full})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := p.l.WithFields(logrus.Fields{
		"projectID": projectID,
		"repo":      p.cfg.Owner + "/" + name,
	})
	log.WithField("files", len(toUpload)).Info("Publishing project")

	repo, err := p.gh.CreateRepo(ctx, name, req.Description, req.Private)
	if err != nil {
		return nil, err
	}
	if repo.Name != "" {
		name = repo.Name
	}

	for i, f := range toUpload {
		content, err := p.readAll(f.full)
		if err != nil {
			return nil, err
		}
		if err := p.gh.PutContent(ctx, p.cfg.Owner, name, f.rel, content, "Add "+f.rel); err != nil {
			log.WithFields(logrus.Fields{
				"path":      f.rel,
				"committed": i,
				"error":     err,
			}).Error("Upload failed, repository left partially populated")
			return nil, err
		}
	}

	fullName := repo.FullName
	if fullName == "" {
		fullName = p.cfg.Owner + "/" + name
	}
	visibility := "public"
	if repo.Private {
		visibility = "private"
	}

	summary := &domain.PublishSummary{
		Repo:       fullName,
		HTMLURL:    repo.HTMLURL,
		CloneURL:   repo.CloneURL,
		Visibility: visibility,
	}
	if err := p.activity.AddActivity(domain.NewActivity(projectID, domain.ActivityPublish, fullName, repo.HTMLURL, time.Now())); err != nil {
		log.WithField("error", err).Warn("Unable to record publish activity")
	}

	log.Info("Project published")
	return summary, nil
}

func (p *Publisher) readAll(full string) ([]byte, error) {
	f, err := p.store.Get(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, xerrors.Errorf("Unable to read file: %w", err)
	}
	return b, nil
}

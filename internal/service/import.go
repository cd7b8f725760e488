package service

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/github"
	"github.com/iantal/miniapp/internal/metrics"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ArchiveDownloader fetches the default branch archive of a repository
type ArchiveDownloader interface {
	DownloadArchive(ctx context.Context, owner, repo string, limit int64) ([]byte, error)
}

// Importer copies the contents of a public GitHub repository into a project
type Importer struct {
	l          *util.StandardLogger
	projects   *ProjectManager
	store      files.Storage
	gh         ArchiveDownloader
	activity   ActivityRecorder
	maxArchive int64
}

func NewImporter(log *util.StandardLogger, projects *ProjectManager, store files.Storage, gh ArchiveDownloader, activity ActivityRecorder, maxArchive int64) *Importer {
	return &Importer{
		l:          log,
		projects:   projects,
		store:      store,
		gh:         gh,
		activity:   activity,
		maxArchive: maxArchive,
	}
}

// Import downloads repoURL and writes its files into the project. Files
// written before a failure are kept.
func (i *Importer) Import(ctx context.Context, projectID, repoURL string) (*domain.ImportSummary, error) {
	unlock, err := i.projects.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	owner, repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	log := i.l.WithFields(logrus.Fields{
		"projectID": projectID,
		"repo":      owner + "/" + repo,
	})

	archive, err := i.gh.DownloadArchive(ctx, owner, repo, i.maxArchive)
	if err != nil {
		return nil, err
	}

	// insecure entry names are filtered per entry by Resolve
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil && !xerrors.Is(err, zip.ErrInsecurePath) {
		return nil, &domain.ErrProvider{Provider: "github", Status: http.StatusBadGateway, Message: "downloaded archive is not a valid zip: " + err.Error()}
	}

	wrapper := archiveWrapper(zr.File)
	log.WithField("wrapper", wrapper).Info("Extracting repository archive")

	n := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || f.Mode()&os.ModeSymlink != 0 {
			continue
		}

		name := stripWrapper(f.Name, wrapper)
		if name == "" || isGitPath(name) {
			continue
		}

		fp, err := i.store.Resolve(projectID, name)
		if err != nil {
			log.WithFields(logrus.Fields{"entry": f.Name, "error": err}).Debug("Skipping archive entry")
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &domain.ErrProvider{Provider: "github", Status: http.StatusBadGateway, Message: "unreadable archive entry " + f.Name + ": " + err.Error()}
		}
		err = i.store.Save(fp, rc)
		rc.Close()
		if err != nil {
			metrics.FilesWritten("import", n)
			return nil, err
		}
		n++
	}
	metrics.FilesWritten("import", n)

	if err := i.projects.touch(projectID); err != nil {
		return nil, err
	}

	summary := &domain.ImportSummary{
		Repo:         owner + "/" + repo,
		ImportedFrom: repoURL,
		Files:        n,
	}
	if err := i.activity.AddActivity(domain.NewActivity(projectID, domain.ActivityImport, summary.Repo, repoURL, time.Now())); err != nil {
		log.WithField("error", err).Warn("Unable to record import activity")
	}

	log.WithField("files", n).Info("Repository imported")
	return summary, nil
}

// archiveWrapper returns the first path segment of the first file entry
// that contains a separator, which is where GitHub nests the repository
func archiveWrapper(entries []*zip.File) string {
	for _, f := range entries {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if i := strings.Index(name, "/"); i > 0 {
			return name[:i]
		}
	}
	return ""
}

func stripWrapper(name, wrapper string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if wrapper != "" {
		name = strings.TrimPrefix(name, wrapper+"/")
	}
	return name
}

func isGitPath(name string) bool {
	return name == ".git" || strings.HasPrefix(name, ".git/")
}

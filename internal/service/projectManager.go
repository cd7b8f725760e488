package service

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/metrics"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/xerrors"
)

// ProjectManager owns the project tree: it creates, lists and deletes
// projects and reads and writes their files, keeping metadata in sync
type ProjectManager struct {
	l     *util.StandardLogger
	store files.Storage
	lock  files.Locker
	now   func() time.Time
}

func NewProjectManager(log *util.StandardLogger, store files.Storage, lock files.Locker) *ProjectManager {
	return &ProjectManager{
		l:     log,
		store: store,
		lock:  lock,
		now:   time.Now,
	}
}

// NewProjectID returns 12 hex characters of a random UUID
func NewProjectID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// acquire checks the project exists and takes its lock
func (p *ProjectManager) acquire(projectID string) (func(), error) {
	if !p.store.Exists(projectID) {
		return nil, &domain.ErrNotFound{What: "project", ID: projectID}
	}
	return p.lock.Lock(projectID)
}

// Create writes a new project with the scaffold files
func (p *ProjectManager) Create(name string) (*domain.Project, error) {
	id := NewProjectID()
	name = SanitizeName(name)

	dir, err := p.store.CreateProject(id)
	if err != nil {
		return nil, err
	}

	unlock, err := p.lock.Lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, f := range scaffold {
		fp, err := p.store.Resolve(id, f.path)
		if err != nil {
			return nil, err
		}
		if err := p.store.Save(fp, strings.NewReader(f.content(name))); err != nil {
			return nil, err
		}
	}

	project := domain.NewProject(id, name, p.now())
	if err := p.store.WriteMeta(id, project.Metadata); err != nil {
		return nil, err
	}

	p.l.WithFields(logrus.Fields{
		"projectID": id,
		"name":      name,
		"dir":       dir,
	}).Info("Project created")
	metrics.FilesWritten("create", len(scaffold))
	return project, nil
}

// List returns every project, most recently updated first. Projects
// without an update timestamp come last.
func (p *ProjectManager) List() ([]domain.Metadata, error) {
	ids, err := p.store.ProjectIDs()
	if err != nil {
		return nil, err
	}

	projects := make([]domain.Metadata, 0, len(ids))
	for _, id := range ids {
		projects = append(projects, p.store.ReadMeta(id))
	}

	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].UpdatedAt != projects[j].UpdatedAt {
			return projects[i].UpdatedAt > projects[j].UpdatedAt
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

// Get returns the metadata of a single project
func (p *ProjectManager) Get(projectID string) (domain.Metadata, error) {
	if !p.store.Exists(projectID) {
		return domain.Metadata{}, &domain.ErrNotFound{What: "project", ID: projectID}
	}
	return p.store.ReadMeta(projectID), nil
}

// Delete removes the project directory recursively
func (p *ProjectManager) Delete(projectID string) error {
	unlock, err := p.acquire(projectID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.store.RemoveProject(projectID); err != nil {
		return err
	}
	p.l.ForProject(projectID).Info("Project deleted")
	return nil
}

// ListFiles returns the project metadata and its relative file paths in
// lexical order, metadata record excluded
func (p *ProjectManager) ListFiles(projectID string) (domain.Metadata, []string, error) {
	unlock, err := p.acquire(projectID)
	if err != nil {
		return domain.Metadata{}, nil, err
	}
	defer unlock()

	paths := []string{}
	err = p.store.Walk(projectID, func(rel, _ string, _ os.FileInfo) error {
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return domain.Metadata{}, nil, err
	}
	return p.store.ReadMeta(projectID), paths, nil
}

// ReadFile returns the file content decoded as UTF-8, replacing
// undecodable bytes
func (p *ProjectManager) ReadFile(projectID, rel string) (string, error) {
	unlock, err := p.acquire(projectID)
	if err != nil {
		return "", err
	}
	defer unlock()

	fp, err := p.store.Resolve(projectID, rel)
	if err != nil {
		return "", err
	}

	f, err := p.store.Get(fp)
	if err != nil {
		var nf *domain.ErrNotFound
		if xerrors.As(err, &nf) {
			return "", &domain.ErrNotFound{What: "file", ID: rel}
		}
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return "", xerrors.Errorf("Unable to read file: %w", err)
	}
	return decodeText(b), nil
}

// WriteFile creates or overwrites a text file
func (p *ProjectManager) WriteFile(projectID, rel, content string) error {
	if strings.TrimSpace(rel) == "" {
		return &domain.ErrMissingInput{Field: "path"}
	}

	unlock, err := p.acquire(projectID)
	if err != nil {
		return err
	}
	defer unlock()

	fp, err := p.store.Resolve(projectID, rel)
	if err != nil {
		return err
	}
	if !supportedPath(rel) {
		return &domain.ErrUnsupportedType{Path: rel}
	}

	if err := p.store.Save(fp, strings.NewReader(content)); err != nil {
		return err
	}

	p.l.WithFields(logrus.Fields{
		"projectID": projectID,
		"path":      rel,
		"bytes":     len(content),
	}).Debug("File written")
	metrics.FilesWritten("write", 1)
	return p.touch(projectID)
}

// Upload stores binary content at target, or at the base name of filename
// when target is empty, and returns the stored relative path
func (p *ProjectManager) Upload(projectID, target, filename string, content io.Reader) (string, error) {
	if content == nil {
		return "", &domain.ErrMissingInput{Field: "file"}
	}

	rel := strings.TrimSpace(target)
	if rel == "" {
		rel = baseName(filename)
	}
	if rel == "" {
		return "", &domain.ErrMissingInput{Field: "path"}
	}

	unlock, err := p.acquire(projectID)
	if err != nil {
		return "", err
	}
	defer unlock()

	fp, err := p.store.Resolve(projectID, rel)
	if err != nil {
		return "", err
	}
	if err := p.store.Save(fp, content); err != nil {
		return "", err
	}

	stored, err := filepath.Rel(p.store.ProjectPath(projectID), fp)
	if err != nil {
		return "", xerrors.Errorf("Unable to compute stored path: %w", err)
	}
	stored = filepath.ToSlash(stored)

	p.l.WithFields(logrus.Fields{
		"projectID": projectID,
		"path":      stored,
	}).Info("File uploaded")
	metrics.FilesWritten("upload", 1)
	return stored, p.touch(projectID)
}

// touch expects the caller to hold the project lock. The new timestamp is
// always strictly greater than the previous one.
func (p *ProjectManager) touch(projectID string) error {
	m := p.store.ReadMeta(projectID)
	ts := domain.FormatTime(p.now())
	if ts <= m.UpdatedAt {
		if prev, err := time.Parse(domain.TimeLayout, m.UpdatedAt); err == nil {
			ts = domain.FormatTime(prev.Add(time.Microsecond))
		}
	}
	m.UpdatedAt = ts
	if m.Name == "" {
		m.Name = defaultProjectName
	}
	return p.store.WriteMeta(projectID, m)
}

func decodeText(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(s)
}

func baseName(filename string) string {
	n := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	if n == "" {
		return ""
	}
	b := path.Base(n)
	if b == "." || b == "/" || b == ".." {
		return ""
	}
	return b
}

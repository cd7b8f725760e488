package files

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"

	"github.com/iantal/miniapp/internal/domain"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var projectIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// ValidID reports whether id has the shape of a generated project id
func ValidID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Local is an implementation of the Storage interface which works with the
// local disk on the current machine
type Local struct {
	log         *util.StandardLogger
	maxFileSize int64 // maximum number of bytes for files
	basePath    string
}

// NewLocal creates a new Local filesytem with the given base path
// basePath is the directory holding one sub directory per project
// maxSize is the max number of bytes that a file can be
func NewLocal(l *util.StandardLogger, basePath string, maxSize int64) (*Local, error) {
	p, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, xerrors.Errorf("Unable to create projects directory: %w", err)
	}

	return &Local{l, maxSize, p}, nil
}

// ProjectPath returns the absolute directory of a project
func (l *Local) ProjectPath(projectID string) string {
	return filepath.Join(l.basePath, projectID)
}

// Exists reports whether a project directory exists for the id
func (l *Local) Exists(projectID string) bool {
	if !ValidID(projectID) {
		return false
	}
	fi, err := os.Stat(l.ProjectPath(projectID))
	return err == nil && fi.IsDir()
}

// ProjectIDs returns the ids of every project directory on disk
func (l *Local) ProjectIDs() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, xerrors.Errorf("Unable to read projects directory: %w", err)
	}

	ids := []string{}
	for _, e := range entries {
		if e.IsDir() && ValidID(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CreateProject creates the directory for a new project
func (l *Local) CreateProject(projectID string) (string, error) {
	if !ValidID(projectID) {
		return "", &domain.ErrInvalidInput{Field: "id", Message: "malformed project id"}
	}
	dir := l.ProjectPath(projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", xerrors.Errorf("Unable to create project directory: %w", err)
	}
	return dir, nil
}

// RemoveProject deletes the project directory and everything below it
func (l *Local) RemoveProject(projectID string) error {
	if !l.Exists(projectID) {
		return &domain.ErrNotFound{What: "project", ID: projectID}
	}
	if err := os.RemoveAll(l.ProjectPath(projectID)); err != nil {
		return xerrors.Errorf("Unable to delete project: %w", err)
	}
	return nil
}

// Resolve maps a relative file path to its location inside the project
func (l *Local) Resolve(projectID, rel string) (string, error) {
	return Resolve(l.ProjectPath(projectID), rel)
}

// Save the contents of the Reader to the given path
// path is an absolute path, normally obtained from Resolve
func (l *Local) Save(fp string, contents io.Reader) error {
	// get the directory and make sure it exists
	d := filepath.Dir(fp)
	err := os.MkdirAll(d, os.ModePerm)
	if xerrors.Is(err, syscall.ENOTDIR) || xerrors.Is(err, syscall.EEXIST) {
		return &domain.ErrInvalidPath{Path: l.relative(fp), Reason: "a parent of the path is a file"}
	}
	if err != nil {
		return xerrors.Errorf("Unable to create directory: %w", err)
	}

	// if the file exists delete it, directories are never replaced
	fi, err := os.Lstat(fp)
	if err == nil {
		if fi.IsDir() {
			return &domain.ErrInvalidPath{Path: l.relative(fp), Reason: "path is a directory"}
		}
		err = os.Remove(fp)
		if err != nil {
			return xerrors.Errorf("Unable to delete file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		// if this is anything other than a not exists error
		return xerrors.Errorf("Unable to get file info: %w", err)
	}

	// create a new file at the path
	f, err := os.Create(fp)
	if err != nil {
		return xerrors.Errorf("Unable to create file: %w", err)
	}
	defer f.Close()

	// write the contents to the new file
	// ensure that we are not writing greater than max bytes
	r := contents
	if l.maxFileSize > 0 {
		r = io.LimitReader(contents, l.maxFileSize+1)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		return xerrors.Errorf("Unable to write to file: %w", err)
	}
	if l.maxFileSize > 0 && n > l.maxFileSize {
		f.Close()
		os.Remove(fp)
		return &domain.ErrPayloadTooLarge{Path: filepath.Base(fp), Size: n, Limit: l.maxFileSize}
	}

	return nil
}

// relative strips the projects directory and the project id from fp
func (l *Local) relative(fp string) string {
	r, err := filepath.Rel(l.basePath, fp)
	if err != nil {
		return filepath.Base(fp)
	}
	parts := strings.SplitN(filepath.ToSlash(r), "/", 2)
	return parts[len(parts)-1]
}

// Get the file at the given path and return a Reader
// the calling function is responsible for closing the reader
func (l *Local) Get(fp string) (*os.File, error) {
	fi, err := os.Stat(fp)
	if err != nil || fi.IsDir() {
		return nil, &domain.ErrNotFound{What: "file", ID: filepath.Base(fp)}
	}

	// open the file
	f, err := os.Open(fp)
	if err != nil {
		return nil, xerrors.Errorf("Unable to open file: %w", err)
	}

	return f, nil
}

// Walk calls fn for every file of the project except the metadata record
func (l *Local) Walk(projectID string, fn WalkFunc) error {
	if !l.Exists(projectID) {
		return &domain.ErrNotFound{What: "project", ID: projectID}
	}
	root := l.ProjectPath(projectID)

	type entry struct {
		rel  string
		full string
		info os.FileInfo
	}
	var entries []entry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == MetaFile {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			l.log.WithFields(logrus.Fields{
				"projectID": projectID,
				"path":      rel,
			}).Debug("Skipping non regular file")
			return nil
		}
		entries = append(entries, entry{rel, p, info})
		return nil
	})
	if err != nil {
		return xerrors.Errorf("Unable to walk project: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	for _, e := range entries {
		if err := fn(e.rel, e.full, e.info); err != nil {
			return err
		}
	}
	return nil
}

// ReadMeta returns the metadata record of a project
func (l *Local) ReadMeta(projectID string) domain.Metadata {
	return ReadMeta(l.ProjectPath(projectID))
}

// WriteMeta overwrites the metadata record of a project
func (l *Local) WriteMeta(projectID string, m domain.Metadata) error {
	return WriteMeta(l.ProjectPath(projectID), m)
}

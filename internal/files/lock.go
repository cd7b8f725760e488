package files

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/xerrors"
)

// Locker scopes mutual exclusion to a single project id
type Locker interface {
	Lock(projectID string) (unlock func(), err error)
}

type noLock struct{}

func (noLock) Lock(string) (func(), error) { return func() {}, nil }

// FileLocker holds one advisory lock file per project under dir
type FileLocker struct {
	dir string
}

// NewLocker returns a FileLocker when enabled, otherwise a Locker that does nothing
func NewLocker(dir string, enabled bool) (Locker, error) {
	if !enabled {
		return noLock{}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, xerrors.Errorf("Unable to create lock directory: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

// Lock blocks until the project lock is held
func (f *FileLocker) Lock(projectID string) (func(), error) {
	fl := flock.New(filepath.Join(f.dir, projectID+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, xerrors.Errorf("Unable to acquire project lock: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

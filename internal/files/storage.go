package files

import (
	"io"
	"os"

	"github.com/iantal/miniapp/internal/domain"
)

// MetaFile is the name of the side-car metadata record in each project root
const MetaFile = "meta.json"

// Storage defines the behavior for project file operations
// Implementations may be of the time local disk, or an embedded database, etc
type Storage interface {
	ProjectPath(projectID string) string
	Exists(projectID string) bool
	ProjectIDs() ([]string, error)
	CreateProject(projectID string) (string, error)
	RemoveProject(projectID string) error

	Resolve(projectID, rel string) (string, error)
	Save(path string, file io.Reader) error
	Get(path string) (*os.File, error)
	Walk(projectID string, fn WalkFunc) error

	ReadMeta(projectID string) domain.Metadata
	WriteMeta(projectID string, m domain.Metadata) error
}

// WalkFunc is called for every content file of a project, in lexical order.
// rel uses forward slashes.
type WalkFunc func(rel, full string, info os.FileInfo) error

package files

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/iantal/miniapp/internal/domain"
	"golang.org/x/xerrors"
)

// ReadMeta returns the metadata record of the project at dir. It never
// fails: a missing or unreadable record yields a default one whose ID is
// the directory name.
func ReadMeta(dir string) domain.Metadata {
	m := domain.Metadata{}
	b, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err == nil {
		_ = json.Unmarshal(b, &m)
	}
	// the directory name is the identity
	m.ID = filepath.Base(dir)
	return m
}

// WriteMeta overwrites the metadata record of the project at dir
func WriteMeta(dir string, m domain.Metadata) error {
	m.ID = filepath.Base(dir)
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return xerrors.Errorf("Unable to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), b, 0644); err != nil {
		return xerrors.Errorf("Unable to write metadata: %w", err)
	}
	return nil
}

package service

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Exporter builds zip archives of projects
type Exporter struct {
	l        *util.StandardLogger
	projects *ProjectManager
	store    files.Storage
	dir      string
}

// NewExporter creates an Exporter writing archives into dir
func NewExporter(log *util.StandardLogger, projects *ProjectManager, store files.Storage, dir string) (*Exporter, error) {
	d, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d, 0755); err != nil {
		return nil, xerrors.Errorf("Unable to create exports directory: %w", err)
	}
	return &Exporter{l: log, projects: projects, store: store, dir: d}, nil
}

// ExportFile regenerates {dir}/{projectID}.zip and returns its path
func (e *Exporter) ExportFile(projectID string) (string, error) {
	unlock, err := e.projects.acquire(projectID)
	if err != nil {
		return "", err
	}
	defer unlock()

	fp := filepath.Join(e.dir, projectID+".zip")
	f, err := os.Create(fp)
	if err != nil {
		return "", xerrors.Errorf("Unable to create archive: %w", err)
	}
	defer f.Close()

	if err := e.export(projectID, f); err != nil {
		return "", err
	}

	e.l.WithFields(logrus.Fields{
		"projectID": projectID,
		"archive":   fp,
	}).Info("Project exported")
	return fp, nil
}

// export writes a deflate compressed zip of every project file to w
func (e *Exporter) export(projectID string, w io.Writer) error {
	zw := zip.NewWriter(w)

	err := e.store.Walk(projectID, func(rel, full string, info os.FileInfo) error {
		h, err := zip.FileInfoHeader(info)
		if err != nil {
			return xerrors.Errorf("Unable to build zip header: %w", err)
		}
		h.Name = rel
		h.Method = zip.Deflate

		dst, err := zw.CreateHeader(h)
		if err != nil {
			return xerrors.Errorf("Unable to add zip entry: %w", err)
		}

		src, err := e.store.Get(full)
		if err != nil {
			return err
		}
		defer src.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return xerrors.Errorf("Unable to write zip entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return xerrors.Errorf("Unable to finish archive: %w", err)
	}
	return nil
}

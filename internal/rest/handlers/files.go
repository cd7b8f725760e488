package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iantal/miniapp/internal/domain"
	"github.com/sirupsen/logrus"
)

// maxUploadMemory is the part of a multipart body kept in memory
const maxUploadMemory = 32 << 20

// FilesResponse lists the files of a project
type FilesResponse struct {
	Project domain.ProjectRef `json:"project"`
	Files   []string          `json:"files"`
}

// FileResponse carries the content of a single file
type FileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileRequest is the body of a text file write
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UploadResponse reports where an upload was stored
type UploadResponse struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
}

// ListFiles returns the relative paths of every file in a project
func (p *Projects) ListFiles(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	meta, paths, err := p.projects.ListFiles(projectID)
	if err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "list_files", "projectID": projectID})
		return
	}
	writeJSON(rw, http.StatusOK, &FilesResponse{Project: meta.Ref(), Files: paths})
}

// ReadFile returns the text content of ?path=
func (p *Projects) ReadFile(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	path := r.URL.Query().Get("path")
	fields := logrus.Fields{"op": "read_file", "projectID": projectID, "path": path}

	if path == "" {
		p.writeError(rw, &domain.ErrMissingInput{Field: "path"}, fields)
		return
	}

	content, err := p.projects.ReadFile(projectID, path)
	if err != nil {
		p.writeError(rw, err, fields)
		return
	}
	writeJSON(rw, http.StatusOK, &FileResponse{Path: path, Content: content})
}

// WriteFile creates or overwrites a text file
func (p *Projects) WriteFile(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	req := &WriteFileRequest{}
	if err := p.decode(r, req); err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "write_file", "projectID": projectID})
		return
	}

	if err := p.projects.WriteFile(projectID, req.Path, req.Content); err != nil {
		p.writeError(rw, err, logrus.Fields{"op": "write_file", "projectID": projectID, "path": req.Path})
		return
	}
	writeJSON(rw, http.StatusOK, &OK{OK: true})
}

// Upload stores the multipart "file" at form field "path", defaulting to
// the uploaded file name
func (p *Projects) Upload(rw http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	fields := logrus.Fields{"op": "upload", "projectID": projectID}

	var content io.Reader
	filename := ""
	if err := r.ParseMultipartForm(maxUploadMemory); err == nil {
		f, h, err := r.FormFile("file")
		if err == nil {
			defer f.Close()
			content = f
			filename = h.Filename
		}
	}

	stored, err := p.projects.Upload(projectID, r.FormValue("path"), filename, content)
	if err != nil {
		p.writeError(rw, err, fields)
		return
	}
	writeJSON(rw, http.StatusOK, &UploadResponse{OK: true, Path: stored})
}

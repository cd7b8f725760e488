package handlers

import (
	"io"
	"net/http"
	"path/filepath"
)

// Static serves the health check and the Mini App page
type Static struct {
	dir string
}

func NewStatic(dir string) *Static {
	return &Static{dir: dir}
}

// Health answers the platform health probe
func (s *Static) Health(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(rw, "OK - Mini App server running.")
}

// App serves the Mini App page
func (s *Static) App(rw http.ResponseWriter, r *http.Request) {
	http.ServeFile(rw, r, filepath.Join(s.dir, "app.html"))
}

// Assets serves everything under the static directory
func (s *Static) Assets() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(s.dir)))
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iantal/miniapp/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route of the web process
func NewRouter(projH *Projects, staticH *Static) *mux.Router {
	sm := mux.NewRouter()
	sm.Use(metrics.Middleware)

	gh := sm.Methods(http.MethodGet).Subrouter()
	gh.HandleFunc("/", staticH.Health)
	gh.HandleFunc("/app", staticH.App)
	gh.PathPrefix("/static/").Handler(staticH.Assets())
	gh.Handle("/metrics", promhttp.Handler())

	gh.HandleFunc("/api/projects", projH.List)
	gh.HandleFunc("/api/projects/{id}/files", projH.ListFiles)
	gh.HandleFunc("/api/projects/{id}/file", projH.ReadFile)
	gh.HandleFunc("/api/projects/{id}/export.zip", projH.Export)
	gh.HandleFunc("/api/projects/{id}/activity", projH.Activity)

	ph := sm.Methods(http.MethodPost).Subrouter()
	ph.HandleFunc("/api/projects", projH.Create)
	ph.HandleFunc("/api/projects/{id}/file", projH.WriteFile)
	ph.HandleFunc("/api/projects/{id}/upload", projH.Upload)
	ph.HandleFunc("/api/projects/{id}/import_github", projH.ImportGitHub)
	ph.HandleFunc("/api/projects/{id}/publish_github", projH.PublishGitHub)

	dh := sm.Methods(http.MethodDelete).Subrouter()
	dh.HandleFunc("/api/projects/{id}", projH.Delete)

	return sm
}

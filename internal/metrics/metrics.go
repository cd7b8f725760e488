// Package metrics holds the Prometheus collectors of the web and bot processes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_http_requests_total",
		Help: "HTTP requests by route template, method and status",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "miniapp_http_request_duration_seconds",
		Help:    "HTTP request latency by route template",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"route"})

	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_provider_calls_total",
		Help: "Outbound provider calls by provider, operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	projectFilesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_project_files_written_total",
		Help: "Files written into projects by operation",
	}, []string{"operation"})
)

// ProviderCall counts an outbound call; err decides the outcome label
func ProviderCall(provider, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerCallsTotal.WithLabelValues(provider, operation, outcome).Inc()
}

// FilesWritten counts files written by a store operation
func FilesWritten(operation string, n int) {
	projectFilesWritten.WithLabelValues(operation).Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by mux route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

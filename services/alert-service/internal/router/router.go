// Package router provides HTTP routing configuration for the alert-service API.
// It sets up routes and applies middleware like CORS.
package router

import (
	"net/http"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/pkg/metrics"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux       *http.ServeMux
	handlers  *handlers.Handlers
	collector *metrics.Collector
}

// NewRouter creates a new router with all routes configured.
// collector may be nil, in which case /metrics is not served.
func NewRouter(h *handlers.Handlers, collector *metrics.Collector) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		handlers:  h,
		collector: collector,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/api/v1/alerts", r.handlers.ListAlerts)
	r.mux.HandleFunc("/api/v1/alerts/rules", r.handlers.ListRules)
	r.mux.HandleFunc("/health", r.handlers.Health)

	if r.collector != nil {
		r.mux.Handle("/metrics", r.collector.Handler())
	}
}

// Handler returns the HTTP handler with all middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.collector)(r.mux))
}

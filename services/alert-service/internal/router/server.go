package router

import (
	"net/http"
	"time"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/pkg/metrics"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, collector *metrics.Collector) *http.Server {
	router := NewRouter(h, collector)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

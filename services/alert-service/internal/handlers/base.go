// Package handlers provides HTTP handlers for the alert-service read API.
package handlers

import "time"

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	alerts    AlertReader
	rules     RuleLister
	checks    map[string]HealthChecker
	startedAt time.Time
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithHealthCheck adds a named dependency to the /health report.
func WithHealthCheck(name string, c HealthChecker) Option {
	return func(h *Handlers) {
		if c != nil {
			h.checks[name] = c
		}
	}
}

// NewHandlers creates a new handlers instance.
func NewHandlers(alerts AlertReader, ruleSet RuleLister, opts ...Option) *Handlers {
	h := &Handlers{
		alerts:    alerts,
		rules:     ruleSet,
		checks:    make(map[string]HealthChecker),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

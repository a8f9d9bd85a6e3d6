package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// ListAlerts returns fired alerts newest first.
// Query params: rule_name, limit (default 50, max 200), offset (default 0)
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	p, err := parsePagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ruleNamePtr *string
	if ruleName := strings.TrimSpace(r.URL.Query().Get("rule_name")); ruleName != "" {
		ruleNamePtr = &ruleName
	}

	result, err := h.alerts.ListAlerts(r.Context(), ruleNamePtr, p.Limit, p.Offset)
	if err != nil {
		slog.Error("Failed to list alerts", "error", err)
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RulesResponse lists the rules loaded at startup.
type RulesResponse struct {
	Rules []rules.AlertRule `json:"rules"`
	Count int               `json:"count"`
}

// ListRules returns the configured alert rules in configuration order.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ruleSet := h.rules.Rules()
	if ruleSet == nil {
		ruleSet = []rules.AlertRule{}
	}
	writeJSON(w, http.StatusOK, RulesResponse{Rules: ruleSet, Count: len(ruleSet)})
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// Health pings every registered dependency. Any failure yields 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		for name, c := range h.checks {
			if err := c.Ping(r.Context()); err != nil {
				slog.Warn("Health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
	}

	writeJSON(w, status, resp)
}

package handlers

import (
	"context"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/database"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// AlertReader defines the read side of the alert store.
type AlertReader interface {
	ListAlerts(ctx context.Context, ruleName *string, limit, offset int) (*database.AlertListResult, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RuleLister exposes the configured rule set.
type RuleLister interface {
	Rules() []rules.AlertRule
}

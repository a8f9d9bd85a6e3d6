package handlers

import (
	"context"
	"errors"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/database"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// mockAlertReader implements AlertReader for testing.
type mockAlertReader struct {
	ListAlertsFn func(ctx context.Context, ruleName *string, limit, offset int) (*database.AlertListResult, error)

	gotRuleName *string
	gotLimit    int
	gotOffset   int
}

func (m *mockAlertReader) ListAlerts(ctx context.Context, ruleName *string, limit, offset int) (*database.AlertListResult, error) {
	m.gotRuleName, m.gotLimit, m.gotOffset = ruleName, limit, offset
	if m.ListAlertsFn != nil {
		return m.ListAlertsFn(ctx, ruleName, limit, offset)
	}
	return &database.AlertListResult{Alerts: []*database.Alert{}, Limit: limit, Offset: offset}, nil
}

type staticRules []rules.AlertRule

func (s staticRules) Rules() []rules.AlertRule { return s }

type mockChecker struct {
	err error
}

func (m mockChecker) Ping(ctx context.Context) error { return m.err }

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

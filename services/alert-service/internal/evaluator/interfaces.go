package evaluator

import (
	"context"
	"time"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/database"
)

// WindowCounter counts and trims a rule's sliding window.
type WindowCounter interface {
	Count(ctx context.Context, key string, windowSeconds int) (int64, error)
	Prune(ctx context.Context, key string, windowSeconds int) (int64, error)
}

// AlertStore persists fired alerts and answers cooldown lookups.
type AlertStore interface {
	// SaveAlert inserts a new alert.
	SaveAlert(ctx context.Context, alert *database.Alert) error

	// MostRecentAlert returns the newest alert for ruleName triggered after since, or nil.
	MostRecentAlert(ctx context.Context, ruleName string, since time.Time) (*database.Alert, error)
}

// Locker hands out short-lived per-rule locks so only one replica evaluates a rule per tick.
type Locker interface {
	// Obtain returns ErrLockNotObtained when another holder has the key.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held Locker key.
type Lock interface {
	Release(ctx context.Context) error
}

// MetricsRecorder defines the metrics operations needed by the evaluator.
type MetricsRecorder interface {
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
	AddCustom(name string, value uint64)
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = NoOpMetrics{}

func (NoOpMetrics) RecordPublished()         {}
func (NoOpMetrics) RecordError()             {}
func (NoOpMetrics) IncrementCustom(string)   {}
func (NoOpMetrics) AddCustom(string, uint64) {}

package processor

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// MessageReader is the consumer side of the logs topic.
type MessageReader interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
}

// DeadLetterPublisher forwards messages that could not be processed.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, msg *kafka.Message, reason string) error
}

// Guard suppresses redelivered events by idempotency key.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RuleMatcher selects the rules an event counts towards.
type RuleMatcher interface {
	MatchingRules(serviceName, severity string) []rules.AlertRule
}

// WindowAppender records one event occurrence in a rule window.
type WindowAppender interface {
	AppendEntry(ctx context.Context, key, entryID string, ts time.Time) error
}

// MetricsRecorder defines the metrics operations needed by the processor.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
	AddCustom(name string, value uint64)
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = NoOpMetrics{}

func (NoOpMetrics) RecordReceived()               {}
func (NoOpMetrics) RecordProcessed(time.Duration) {}
func (NoOpMetrics) RecordError()                  {}
func (NoOpMetrics) IncrementCustom(string)        {}
func (NoOpMetrics) AddCustom(string, uint64)      {}

// Package processor consumes log events, de-duplicates them and appends them to rule windows.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/events"
)

const (
	DefaultWorkers       = 3
	DefaultMaxAttempts   = 3
	DefaultRetryBackoff  = time.Second
	DefaultHandleTimeout = 30 * time.Second

	maxRetryBackoff   = 30 * time.Second
	readErrorBackoff  = time.Second
	releaseTimeout    = 5 * time.Second
	workerQueueLength = 16
)

// Custom metric names.
const (
	metricEventsDeduplicated   = "events_deduplicated"
	metricEventsMatched        = "events_matched"
	metricWindowAppends        = "window_appends"
	metricMessagesDeadLettered = "messages_dead_lettered"
	metricMessagesSkipped      = "messages_skipped"
	metricProcessingRetries    = "processing_retries"
	metricDeadLetterFailures   = "dead_letter_failures"
	metricMessagesUndecodable  = "messages_undecodable"
	metricShutdownUncommitted  = "messages_left_uncommitted"
)

// Config controls the worker pool and failure handling.
type Config struct {
	Workers       int
	MaxAttempts   int           // total tries per message, including the first
	RetryBackoff  time.Duration // doubled after every failed attempt
	HandleTimeout time.Duration // per-message deadline, survives shutdown
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = DefaultHandleTimeout
	}
	return c
}

// Processor reads log messages and records every (event, matching rule) pair in that
// rule's window. A message is committed only once it is fully handled: appended,
// recognised as a duplicate, or given up on.
type Processor struct {
	reader   MessageReader
	guard    Guard
	matcher  RuleMatcher
	appender WindowAppender
	dlq      DeadLetterPublisher
	metrics  MetricsRecorder
	cfg      Config
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithDeadLetter enables forwarding of failed messages. Without it they are logged and skipped.
func WithDeadLetter(dlq DeadLetterPublisher) Option {
	return func(p *Processor) {
		p.dlq = dlq
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithClock overrides the receive-time clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor creates a processor. Zero config fields take their defaults.
func NewProcessor(reader MessageReader, guard Guard, matcher RuleMatcher, appender WindowAppender, cfg Config, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		guard:    guard,
		matcher:  matcher,
		appender: appender,
		metrics:  NoOpMetrics{},
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run dispatches messages to the worker pool until ctx is cancelled, then waits for
// in-flight messages to finish. Messages of one partition always go to the same
// worker so their commits stay in offset order.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("Starting log event processing loop",
		"workers", p.cfg.Workers,
		"max_attempts", p.cfg.MaxAttempts,
		"retry_backoff", p.cfg.RetryBackoff,
		"dead_letter", p.dlq != nil,
	)

	queues := make([]chan *kafka.Message, p.cfg.Workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan *kafka.Message, workerQueueLength)
		wg.Add(1)
		go p.runWorker(ctx, queues[i], &wg)
	}

	p.dispatchMessages(ctx, queues)

	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	slog.Info("Log event processing loop stopped")
	return nil
}

func (p *Processor) runWorker(ctx context.Context, queue <-chan *kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	for msg := range queue {
		if ctx.Err() != nil {
			// Not started yet: leave it uncommitted for redelivery.
			continue
		}
		p.HandleMessage(ctx, msg)
	}
}

func (p *Processor) dispatchMessages(ctx context.Context, queues []chan *kafka.Message) {
	for {
		msg, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to read log message", "error", err)
			p.metrics.RecordError()
			if !sleepCtx(ctx, readErrorBackoff) {
				return
			}
			continue
		}

		select {
		case queues[workerFor(msg.Partition, len(queues))] <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func workerFor(partition, workers int) int {
	idx := partition % workers
	if idx < 0 {
		idx = -idx
	}
	return idx
}

// HandleMessage runs one message through decode, guard and window appends, retrying
// transient failures. Work continues on a detached context bounded by HandleTimeout,
// so a shutdown does not abort a half-applied message.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.Message) {
	start := p.now()
	p.metrics.RecordReceived()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HandleTimeout)
	defer cancel()

	batch, err := decodeMessage(msg, start)
	if err != nil {
		p.metrics.IncrementCustom(metricMessagesUndecodable)
		p.giveUp(ctx, msg, err)
		return
	}

	key := idempotencyKey(msg)
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		duplicate, err := p.apply(hctx, msg, key, batch)
		if err == nil {
			if duplicate {
				p.metrics.IncrementCustom(metricEventsDeduplicated)
				slog.Debug("Duplicate log message skipped",
					"idempotency_key", key,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
			} else {
				p.metrics.RecordProcessed(p.now().Sub(start))
			}
			p.commit(hctx, msg)
			return
		}

		lastErr = err
		p.metrics.RecordError()
		if attempt == p.cfg.MaxAttempts {
			break
		}

		backoff := p.backoff(attempt)
		slog.Warn("Failed to process log message, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"max_attempts", p.cfg.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)
		p.metrics.IncrementCustom(metricProcessingRetries)
		if !sleepCtx(ctx, backoff) {
			p.leaveUncommitted(msg, err)
			return
		}
	}

	p.giveUp(ctx, msg, lastErr)
}

// apply performs one attempt. It reports duplicate=true when the guard has already
// seen the key. On failure the guard key is released before returning.
func (p *Processor) apply(ctx context.Context, msg *kafka.Message, key string, batch []*events.LogEvent) (bool, error) {
	acquired, err := p.guard.TryAcquire(ctx, key)
	if err != nil {
		return false, err
	}
	if !acquired {
		return true, nil
	}

	matched, appends, err := p.appendAll(ctx, msg, key, batch)
	if err != nil {
		// The attempt context may have expired; the release must still land.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := p.guard.Release(rctx, key); relErr != nil {
			slog.Error("Failed to release idempotency key",
				"idempotency_key", key,
				"error", relErr,
			)
		}
		return false, err
	}

	p.metrics.AddCustom(metricEventsMatched, matched)
	p.metrics.AddCustom(metricWindowAppends, appends)
	return false, nil
}

func (p *Processor) appendAll(ctx context.Context, msg *kafka.Message, key string, batch []*events.LogEvent) (matched, appends uint64, err error) {
	for i, event := range batch {
		rulesHit := p.matcher.MatchingRules(event.ServiceName, event.Severity)
		if len(rulesHit) == 0 {
			continue
		}
		matched++

		id := entryID(msg, key, i)
		for _, rule := range rulesHit {
			windowKey := rule.WindowKey()
			if err := p.appender.AppendEntry(ctx, windowKey, id, event.Timestamp); err != nil {
				return matched, appends, fmt.Errorf("append to window %s: %w", windowKey, err)
			}
			appends++
		}
	}
	return matched, appends, nil
}

// giveUp dead-letters msg, or logs and skips it when no dead-letter topic is set,
// then commits. A dead-letter write that fails is retried until it succeeds or the
// processor shuts down; the partition stalls meanwhile.
func (p *Processor) giveUp(ctx context.Context, msg *kafka.Message, cause error) {
	if p.dlq == nil {
		slog.Error("Dropping log message after failed processing",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"permanent", errors.Is(cause, ErrPermanent),
			"error", cause,
		)
		p.metrics.IncrementCustom(metricMessagesSkipped)
		p.commitDetached(ctx, msg)
		return
	}

	reason := cause.Error()
	for attempt := 1; ; attempt++ {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HandleTimeout)
		err := p.dlq.PublishDeadLetter(dctx, msg, reason)
		cancel()
		if err == nil {
			break
		}

		p.metrics.IncrementCustom(metricDeadLetterFailures)
		backoff := p.backoff(attempt)
		slog.Error("Failed to dead-letter log message, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepCtx(ctx, backoff) {
			p.leaveUncommitted(msg, err)
			return
		}
	}

	p.metrics.IncrementCustom(metricMessagesDeadLettered)
	slog.Warn("Log message dead-lettered",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"reason", reason,
	)
	p.commitDetached(ctx, msg)
}

func (p *Processor) leaveUncommitted(msg *kafka.Message, cause error) {
	p.metrics.IncrementCustom(metricShutdownUncommitted)
	slog.Warn("Shutdown while handling log message, leaving it uncommitted",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", cause,
	)
}

func (p *Processor) commitDetached(ctx context.Context, msg *kafka.Message) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HandleTimeout)
	defer cancel()
	p.commit(cctx, msg)
}

func (p *Processor) commit(ctx context.Context, msg *kafka.Message) {
	if err := p.reader.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit offset", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		p.metrics.RecordError()
	}
}

// backoff returns RetryBackoff doubled per prior attempt, capped at maxRetryBackoff.
func (p *Processor) backoff(attempt int) time.Duration {
	d := p.cfg.RetryBackoff
	for i := 1; i < attempt && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}

// sleepCtx waits for d and reports false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

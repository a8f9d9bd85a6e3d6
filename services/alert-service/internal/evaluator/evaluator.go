// Package evaluator periodically checks each rule's window against its threshold and records alerts.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/database"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

const (
	// DefaultInterval is the default tick period.
	DefaultInterval = 5 * time.Second
	// DefaultCooldown is the default minimum gap between two alerts of one rule.
	DefaultCooldown = 60 * time.Second
	// MinLockTTL is the shortest lifetime of a per-rule evaluation lock.
	MinLockTTL = 30 * time.Second
)

// Evaluator fires alerts for rules whose window count reached the threshold,
// at most once per rule per cooldown.
type Evaluator struct {
	rules    []rules.AlertRule
	counter  WindowCounter
	store    AlertStore
	locker   Locker
	metrics  MetricsRecorder
	interval time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLocker sets the per-rule locker. The default grants every lock.
func WithLocker(l Locker) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an evaluator over a fixed rule set.
// A non-positive interval falls back to DefaultInterval; a negative cooldown is treated as zero.
func NewEvaluator(ruleSet []rules.AlertRule, counter WindowCounter, store AlertStore, interval, cooldown time.Duration, opts ...Option) *Evaluator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if cooldown < 0 {
		cooldown = 0
	}
	e := &Evaluator{
		rules:    ruleSet,
		counter:  counter,
		store:    store,
		locker:   NoOpLocker{},
		metrics:  NoOpMetrics{},
		interval: interval,
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates all rules every interval until ctx is cancelled. Ticks never overlap.
func (e *Evaluator) Run(ctx context.Context) {
	slog.Info("Starting alert evaluator",
		"interval", e.interval,
		"cooldown", e.cooldown,
		"rules_count", len(e.rules),
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Alert evaluator stopped")
			return
		case <-ticker.C:
			e.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll evaluates every rule once and returns the alerts fired.
// A failing rule is logged and does not stop the others.
func (e *Evaluator) EvaluateAll(ctx context.Context) []*database.Alert {
	var fired []*database.Alert
	for _, rule := range e.rules {
		if ctx.Err() != nil {
			break
		}

		alert, err := e.evaluateLocked(ctx, rule)
		if errors.Is(err, ErrLockNotObtained) {
			slog.Debug("Rule evaluated by another instance, skipping", "rule", rule.Name)
			e.metrics.IncrementCustom("evaluations_skipped_locked")
			continue
		}
		if err != nil {
			slog.Error("Failed to evaluate rule", "rule", rule.Name, "error", err)
			e.metrics.RecordError()
			e.metrics.IncrementCustom("evaluation_errors")
			continue
		}
		if alert != nil {
			fired = append(fired, alert)
		}
	}
	return fired
}

// lockTTL is the interval, raised to MinLockTTL.
func (e *Evaluator) lockTTL() time.Duration {
	return max(e.interval, MinLockTTL)
}

// evaluationTimeout bounds one locked evaluation to four fifths of the lock TTL,
// so the lock cannot expire while its holder is still counting or saving.
func evaluationTimeout(ttl time.Duration) time.Duration {
	return ttl * 4 / 5
}

// evaluateLocked runs EvaluateRule while holding the rule's lock.
func (e *Evaluator) evaluateLocked(ctx context.Context, rule rules.AlertRule) (*database.Alert, error) {
	ttl := e.lockTTL()
	lock, err := e.locker.Obtain(ctx, LockKey(rule), ttl)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release evaluator lock", "rule", rule.Name, "error", err)
		}
	}()

	evalCtx, cancel := context.WithTimeout(ctx, evaluationTimeout(ttl))
	defer cancel()

	return e.EvaluateRule(evalCtx, rule)
}

// EvaluateRule checks one rule and returns the new alert, or nil if nothing fired.
// The window is pruned whenever it could be counted, even if the cooldown lookup or save failed.
func (e *Evaluator) EvaluateRule(ctx context.Context, rule rules.AlertRule) (*database.Alert, error) {
	key := rule.WindowKey()
	now := e.now().UTC()

	count, err := e.counter.Count(ctx, key, rule.WindowSeconds)
	if err != nil {
		return nil, err
	}

	alert, fireErr := e.maybeFire(ctx, rule, count, now)

	pruned, err := e.counter.Prune(ctx, key, rule.WindowSeconds)
	if err != nil {
		slog.Warn("Failed to prune window", "rule", rule.Name, "key", key, "error", err)
	} else if pruned > 0 {
		e.metrics.AddCustom("window_entries_pruned", uint64(pruned))
	}

	return alert, fireErr
}

// maybeFire saves an alert when count reached the threshold and the rule is not cooling down.
func (e *Evaluator) maybeFire(ctx context.Context, rule rules.AlertRule, count int64, now time.Time) (*database.Alert, error) {
	if count < int64(rule.Threshold) {
		return nil, nil
	}

	recent, err := e.store.MostRecentAlert(ctx, rule.Name, now.Add(-e.cooldown))
	if err != nil {
		return nil, fmt.Errorf("cooldown lookup: %w", err)
	}
	if recent != nil {
		slog.Debug("Alert suppressed by cooldown",
			"rule", rule.Name,
			"count", count,
			"last_triggered_at", recent.TriggeredAt,
		)
		e.metrics.IncrementCustom("alerts_suppressed")
		return nil, nil
	}

	alert := &database.Alert{
		RuleName:      rule.Name,
		ServiceName:   rule.ServiceName,
		Severity:      rule.Severity,
		Count:         count,
		Threshold:     rule.Threshold,
		WindowSeconds: rule.WindowSeconds,
		Message:       FormatMessage(rule, count),
		TriggeredAt:   now,
	}
	if err := e.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}

	e.metrics.RecordPublished()
	e.metrics.IncrementCustom("alerts_triggered")

	slog.Warn("Alert triggered",
		"alert_id", alert.ID,
		"rule", rule.Name,
		"count", count,
		"threshold", rule.Threshold,
		"window_seconds", rule.WindowSeconds,
	)
	return alert, nil
}

// FormatMessage renders the human-readable alert summary.
func FormatMessage(rule rules.AlertRule, count int64) string {
	return fmt.Sprintf("Alert rule '%s' triggered: %d events in %d seconds (threshold: %d)",
		rule.Name, count, rule.WindowSeconds, rule.Threshold)
}

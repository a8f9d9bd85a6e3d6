package evaluator

import (
	"context"
	"sync"
	"time"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/database"
)

// FakeStore is an in-memory AlertStore.
type FakeStore struct {
	mu        sync.Mutex
	Alerts    []*database.Alert
	SaveErr   error
	LookupErr error
}

func (f *FakeStore) SaveAlert(ctx context.Context, alert *database.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	if alert.ID == "" {
		alert.ID = "alert-" + time.Now().Format("150405.000000000")
	}
	f.Alerts = append(f.Alerts, alert)
	return nil
}

func (f *FakeStore) MostRecentAlert(ctx context.Context, ruleName string, since time.Time) (*database.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	var latest *database.Alert
	for _, a := range f.Alerts {
		if a.RuleName != ruleName || !a.TriggeredAt.After(since) {
			continue
		}
		if latest == nil || a.TriggeredAt.After(latest.TriggeredAt) {
			latest = a
		}
	}
	return latest, nil
}

func (f *FakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}

// FakeCounter returns fixed counts per key and records prunes and Count deadlines.
type FakeCounter struct {
	Counts    map[string]int64
	CountErr  error
	PruneErr  error
	Pruned    []string
	Counted   []string
	Deadlines []time.Time
}

func (f *FakeCounter) Count(ctx context.Context, key string, windowSeconds int) (int64, error) {
	f.Counted = append(f.Counted, key)
	deadline, _ := ctx.Deadline()
	f.Deadlines = append(f.Deadlines, deadline)
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.Counts[key], nil
}

func (f *FakeCounter) Prune(ctx context.Context, key string, windowSeconds int) (int64, error) {
	f.Pruned = append(f.Pruned, key)
	if f.PruneErr != nil {
		return 0, f.PruneErr
	}
	return 0, nil
}

// FakeLocker refuses keys listed in Held and records requested TTLs.
type FakeLocker struct {
	Held     map[string]bool
	Released []string
	TTLs     []time.Duration
}

func (f *FakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	f.TTLs = append(f.TTLs, ttl)
	if f.Held[key] {
		return nil, ErrLockNotObtained
	}
	return &fakeLock{key: key, locker: f}, nil
}

type fakeLock struct {
	key    string
	locker *FakeLocker
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.locker.Released = append(l.locker.Released, l.key)
	return nil
}

// FakeMetrics records custom counter increments.
type FakeMetrics struct {
	Published int
	Errors    int
	Custom    map[string]uint64
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{Custom: make(map[string]uint64)}
}

func (f *FakeMetrics) RecordPublished()                    { f.Published++ }
func (f *FakeMetrics) RecordError()                        { f.Errors++ }
func (f *FakeMetrics) IncrementCustom(name string)         { f.Custom[name]++ }
func (f *FakeMetrics) AddCustom(name string, value uint64) { f.Custom[name] += value }

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

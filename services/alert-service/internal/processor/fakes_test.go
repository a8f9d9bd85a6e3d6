package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// FakeReader serves queued messages, then blocks until the context is cancelled.
type FakeReader struct {
	mu        sync.Mutex
	messages  chan *kafka.Message
	Committed []*kafka.Message
	CommitErr error
	committed chan struct{}
}

func NewFakeReader(msgs ...*kafka.Message) *FakeReader {
	r := &FakeReader{
		messages:  make(chan *kafka.Message, len(msgs)),
		committed: make(chan struct{}, len(msgs)+16),
	}
	for _, m := range msgs {
		r.messages <- m
	}
	return r
}

func (r *FakeReader) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *FakeReader) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitErr != nil {
		return r.CommitErr
	}
	r.Committed = append(r.Committed, msg)
	select {
	case r.committed <- struct{}{}:
	default:
	}
	return nil
}

// WaitCommits blocks until n commits happened or the timeout passes.
func (r *FakeReader) WaitCommits(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-r.committed:
		case <-deadline:
			return false
		}
	}
	return true
}

func (r *FakeReader) commits() []*kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*kafka.Message(nil), r.Committed...)
}

// FakeGuard is an in-memory Guard.
type FakeGuard struct {
	mu         sync.Mutex
	seen       map[string]bool
	AcquireErr error
	Acquired   []string
	Released   []string
}

func NewFakeGuard() *FakeGuard {
	return &FakeGuard{seen: make(map[string]bool)}
}

func (g *FakeGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AcquireErr != nil {
		return false, g.AcquireErr
	}
	if key == "" {
		return true, nil
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	g.Acquired = append(g.Acquired, key)
	return true, nil
}

func (g *FakeGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	g.Released = append(g.Released, key)
	return nil
}

func (g *FakeGuard) has(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[key]
}

// FakeAppender stores window entries as key -> entryID -> timestamp.
// The first FailTimes appends return Err; FailAlways makes every append fail.
type FakeAppender struct {
	mu         sync.Mutex
	Windows    map[string]map[string]time.Time
	Err        error
	FailTimes  int
	FailAlways bool
	Calls      int
}

func NewFakeAppender() *FakeAppender {
	return &FakeAppender{Windows: make(map[string]map[string]time.Time)}
}

func (a *FakeAppender) AppendEntry(ctx context.Context, key, entryID string, ts time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls++
	if a.FailAlways || a.FailTimes > 0 {
		if a.FailTimes > 0 {
			a.FailTimes--
		}
		if a.Err != nil {
			return a.Err
		}
		return errors.New("redis: connection refused")
	}
	if a.Windows[key] == nil {
		a.Windows[key] = make(map[string]time.Time)
	}
	a.Windows[key][entryID] = ts
	return nil
}

func (a *FakeAppender) size(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Windows[key])
}

// FakeDLQ records dead-lettered messages.
type FakeDLQ struct {
	mu        sync.Mutex
	Messages  []*kafka.Message
	Reasons   []string
	Err       error
	FailTimes int
}

func (d *FakeDLQ) PublishDeadLetter(ctx context.Context, msg *kafka.Message, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil && d.FailTimes != 0 {
		if d.FailTimes > 0 {
			d.FailTimes--
		}
		return d.Err
	}
	d.Messages = append(d.Messages, msg)
	d.Reasons = append(d.Reasons, reason)
	return nil
}

// FakeMetrics tracks counters.
type FakeMetrics struct {
	mu        sync.Mutex
	Received  int
	Processed int
	Errors    int
	Custom    map[string]uint64
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{Custom: make(map[string]uint64)}
}

func (m *FakeMetrics) RecordReceived() {
	m.mu.Lock()
	m.Received++
	m.mu.Unlock()
}

func (m *FakeMetrics) RecordProcessed(time.Duration) {
	m.mu.Lock()
	m.Processed++
	m.mu.Unlock()
}

func (m *FakeMetrics) RecordError() {
	m.mu.Lock()
	m.Errors++
	m.mu.Unlock()
}

func (m *FakeMetrics) IncrementCustom(name string) {
	m.AddCustom(name, 1)
}

func (m *FakeMetrics) AddCustom(name string, value uint64) {
	m.mu.Lock()
	m.Custom[name] += value
	m.mu.Unlock()
}

func (m *FakeMetrics) custom(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Custom[name]
}

package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/window"
)

var highErrorRate = rules.AlertRule{Name: "high-error-rate", Severity: "ERROR", Threshold: 10, WindowSeconds: 60}

func newClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestHighErrorRateScenario(t *testing.T) {
	clock := newClock()
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, store, 5*time.Second, 60*time.Second, WithClock(clock.Now))
	ctx := context.Background()

	fired := e.EvaluateAll(ctx)
	if len(fired) != 1 {
		t.Fatalf("first evaluation fired %d alerts, want 1", len(fired))
	}
	if fired[0].Count != 10 || fired[0].Threshold != 10 {
		t.Errorf("alert count/threshold = %d/%d, want 10/10", fired[0].Count, fired[0].Threshold)
	}

	// one more matching event a second later: still cooling down
	clock.Advance(time.Second)
	counter.Counts[highErrorRate.WindowKey()] = 11
	if fired := e.EvaluateAll(ctx); len(fired) != 0 {
		t.Fatalf("evaluation during cooldown fired %d alerts, want 0", len(fired))
	}

	// cooldown over, count still above threshold
	clock.Advance(60 * time.Second)
	if fired := e.EvaluateAll(ctx); len(fired) != 1 {
		t.Fatalf("evaluation after cooldown fired %d alerts, want 1", len(fired))
	}
	if store.count() != 2 {
		t.Errorf("stored alerts = %d, want 2", store.count())
	}
}

func TestHighErrorRateScenario_RedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := newClock()
	counter := window.NewRedisCounter(client, window.WithClock(clock.Now))
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, store, 5*time.Second, 60*time.Second, WithClock(clock.Now))
	ctx := context.Background()
	key := highErrorRate.WindowKey()

	for i := 0; i < 9; i++ {
		if err := counter.Append(ctx, key, clock.Now().Add(-time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if fired := e.EvaluateAll(ctx); len(fired) != 0 {
		t.Fatalf("9 events fired %d alerts, want 0", len(fired))
	}

	_ = counter.Append(ctx, key, clock.Now())
	fired := e.EvaluateAll(ctx)
	if len(fired) != 1 || fired[0].Count != 10 {
		t.Fatalf("10 events fired %v, want one alert with count 10", fired)
	}

	clock.Advance(time.Second)
	_ = counter.Append(ctx, key, clock.Now())
	if fired := e.EvaluateAll(ctx); len(fired) != 0 {
		t.Errorf("11th event during cooldown fired %d alerts, want 0", len(fired))
	}

	// once the burst has aged out, nothing fires even though the cooldown passed
	clock.Advance(3 * time.Minute)
	if fired := e.EvaluateAll(ctx); len(fired) != 0 {
		t.Errorf("aged-out window fired %d alerts, want 0", len(fired))
	}
	if n, _ := counter.Count(ctx, key, 3600); n != 0 {
		t.Errorf("entries left after prune = %d, want 0", n)
	}
}

func TestEvaluateRule_AlertFieldsComeFromRule(t *testing.T) {
	rule := rules.AlertRule{Name: "payments-warn", ServiceName: "payments", Severity: "WARN", Threshold: 3, WindowSeconds: 30}
	clock := newClock()
	counter := &FakeCounter{Counts: map[string]int64{rule.WindowKey(): 4}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{rule}, counter, store, time.Second, time.Minute, WithClock(clock.Now))

	alert, err := e.EvaluateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("EvaluateRule() error = %v", err)
	}
	if alert == nil {
		t.Fatal("EvaluateRule() = nil, want alert")
	}
	if alert.ServiceName != "payments" || alert.Severity != "WARN" || alert.WindowSeconds != 30 {
		t.Errorf("alert = %+v", alert)
	}
	if !alert.TriggeredAt.Equal(clock.Now()) {
		t.Errorf("TriggeredAt = %v, want %v", alert.TriggeredAt, clock.Now())
	}
	want := "Alert rule 'payments-warn' triggered: 4 events in 30 seconds (threshold: 3)"
	if alert.Message != want {
		t.Errorf("Message = %q, want %q", alert.Message, want)
	}
}

func TestEvaluateRule_BelowThresholdStillPrunes(t *testing.T) {
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 9}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, store, time.Second, time.Minute)

	alert, err := e.EvaluateRule(context.Background(), highErrorRate)
	if err != nil || alert != nil {
		t.Fatalf("EvaluateRule() = %v, %v; want nil, nil", alert, err)
	}
	if len(counter.Pruned) != 1 {
		t.Errorf("Prune calls = %d, want 1", len(counter.Pruned))
	}
}

func TestEvaluateRule_CooldownBoundary(t *testing.T) {
	clock := newClock()
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, store, time.Second, time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	if a, _ := e.EvaluateRule(ctx, highErrorRate); a == nil {
		t.Fatal("first evaluation should fire")
	}
	clock.Advance(59 * time.Second)
	if a, _ := e.EvaluateRule(ctx, highErrorRate); a != nil {
		t.Error("evaluation 59s later should be suppressed")
	}
	clock.Advance(time.Second)
	if a, _ := e.EvaluateRule(ctx, highErrorRate); a == nil {
		t.Error("evaluation exactly one cooldown later should fire")
	}
}

func TestEvaluateRule_CooldownIsPerRuleName(t *testing.T) {
	other := rules.AlertRule{Name: "checkout-errors", ServiceName: "checkout", Severity: "ERROR", Threshold: 1, WindowSeconds: 60}
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10, other.WindowKey(): 1}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate, other}, counter, store, time.Second, time.Minute)

	if fired := e.EvaluateAll(context.Background()); len(fired) != 2 {
		t.Errorf("EvaluateAll() fired %d alerts, want one per rule", len(fired))
	}
}

func TestEvaluateAll_SharedNameSharesCooldown(t *testing.T) {
	payments := rules.AlertRule{Name: "errors", ServiceName: "payments", Severity: "ERROR", Threshold: 1, WindowSeconds: 60}
	checkout := rules.AlertRule{Name: "errors", ServiceName: "checkout", Severity: "ERROR", Threshold: 1, WindowSeconds: 60}
	counter := &FakeCounter{Counts: map[string]int64{payments.WindowKey(): 3, checkout.WindowKey(): 4}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{payments, checkout}, counter, store, time.Second, time.Minute, WithClock(newClock().Now))

	fired := e.EvaluateAll(context.Background())
	if len(fired) != 1 || fired[0].ServiceName != "payments" {
		t.Fatalf("EvaluateAll() fired %v, want only the first rule", fired)
	}
	if len(counter.Pruned) != 2 {
		t.Errorf("pruned = %v, want both windows", counter.Pruned)
	}
}

func TestEvaluateAll_Failures(t *testing.T) {
	storeDown := errors.New("connection refused")

	tests := []struct {
		name       string
		counter    *FakeCounter
		store      *FakeStore
		wantPrunes int
	}{
		{
			name:       "count error skips rule without pruning",
			counter:    &FakeCounter{CountErr: errors.New("redis down")},
			store:      &FakeStore{},
			wantPrunes: 0,
		},
		{
			name:       "cooldown lookup error does not fire but prunes",
			counter:    &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10}},
			store:      &FakeStore{LookupErr: storeDown},
			wantPrunes: 1,
		},
		{
			name:       "save error prunes",
			counter:    &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10}},
			store:      &FakeStore{SaveErr: storeDown},
			wantPrunes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFakeMetrics()
			e := NewEvaluator([]rules.AlertRule{highErrorRate}, tt.counter, tt.store, time.Second, time.Minute, WithMetrics(m))

			if fired := e.EvaluateAll(context.Background()); len(fired) != 0 {
				t.Errorf("EvaluateAll() fired %d alerts, want 0", len(fired))
			}
			if len(tt.counter.Pruned) != tt.wantPrunes {
				t.Errorf("Prune calls = %d, want %d", len(tt.counter.Pruned), tt.wantPrunes)
			}
			if m.Custom["evaluation_errors"] != 1 || m.Errors != 1 {
				t.Errorf("error metrics = %d/%d, want 1/1", m.Custom["evaluation_errors"], m.Errors)
			}
		})
	}
}

func TestEvaluateAll_OneRuleFailingDoesNotBlockOthers(t *testing.T) {
	healthy := rules.AlertRule{Name: "healthy", Threshold: 1, WindowSeconds: 60}
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10, healthy.WindowKey(): 5}}
	store := &FakeStore{}
	m := NewFakeMetrics()
	e := NewEvaluator([]rules.AlertRule{highErrorRate, healthy}, counter, store, time.Second, time.Minute, WithMetrics(m))

	store.SaveErr = errors.New("disk full")
	e.EvaluateAll(context.Background())
	store.SaveErr = nil

	if len(counter.Counted) != 2 {
		t.Errorf("rules counted = %d, want 2", len(counter.Counted))
	}

	fired := e.EvaluateAll(context.Background())
	if len(fired) != 2 {
		t.Errorf("retry tick fired %d alerts, want 2", len(fired))
	}
	if m.Custom["alerts_triggered"] != 2 || m.Published != 2 {
		t.Errorf("alerts_triggered = %d, published = %d; want 2/2", m.Custom["alerts_triggered"], m.Published)
	}
}

func TestEvaluateAll_SkipsLockedRules(t *testing.T) {
	other := rules.AlertRule{Name: "other", Threshold: 1, WindowSeconds: 60}
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10, other.WindowKey(): 1}}
	locker := &FakeLocker{Held: map[string]bool{LockKey(highErrorRate): true}}
	m := NewFakeMetrics()
	e := NewEvaluator([]rules.AlertRule{highErrorRate, other}, counter, &FakeStore{}, time.Second, time.Minute,
		WithLocker(locker), WithMetrics(m))

	fired := e.EvaluateAll(context.Background())
	if len(fired) != 1 || fired[0].RuleName != "other" {
		t.Fatalf("EvaluateAll() fired %v, want only rule other", fired)
	}
	if len(counter.Counted) != 1 || counter.Counted[0] != other.WindowKey() {
		t.Errorf("counted keys = %v, want only %s", counter.Counted, other.WindowKey())
	}
	if len(locker.Released) != 1 || locker.Released[0] != LockKey(other) {
		t.Errorf("released locks = %v", locker.Released)
	}
	if m.Custom["evaluations_skipped_locked"] != 1 {
		t.Errorf("evaluations_skipped_locked = %d, want 1", m.Custom["evaluations_skipped_locked"])
	}
}

func TestEvaluateAll_LockOutlivesEvaluation(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		wantTTL  time.Duration
	}{
		{name: "short interval raised to minimum", interval: time.Second, wantTTL: MinLockTTL},
		{name: "default interval raised to minimum", interval: DefaultInterval, wantTTL: MinLockTTL},
		{name: "long interval kept", interval: 2 * time.Minute, wantTTL: 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &FakeCounter{Counts: map[string]int64{}}
			locker := &FakeLocker{}
			e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, &FakeStore{}, tt.interval, time.Minute, WithLocker(locker))

			start := time.Now()
			e.EvaluateAll(context.Background())

			if len(locker.TTLs) != 1 || locker.TTLs[0] != tt.wantTTL {
				t.Fatalf("lock TTLs = %v, want [%v]", locker.TTLs, tt.wantTTL)
			}
			if len(counter.Deadlines) != 1 || counter.Deadlines[0].IsZero() {
				t.Fatalf("count deadlines = %v, want one deadline", counter.Deadlines)
			}
			if !counter.Deadlines[0].Before(start.Add(tt.wantTTL)) {
				t.Errorf("evaluation deadline %v does not end before the lock expires at %v",
					counter.Deadlines[0], start.Add(tt.wantTTL))
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	counter := &FakeCounter{Counts: map[string]int64{highErrorRate.WindowKey(): 10}}
	store := &FakeStore{}
	e := NewEvaluator([]rules.AlertRule{highErrorRate}, counter, store, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("evaluator never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if store.count() != 1 {
		t.Errorf("stored alerts = %d, want 1 (cooldown)", store.count())
	}
}

func TestNewEvaluator_Defaults(t *testing.T) {
	e := NewEvaluator(nil, &FakeCounter{}, &FakeStore{}, 0, -time.Second)
	if e.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", e.interval, DefaultInterval)
	}
	if e.cooldown != 0 {
		t.Errorf("cooldown = %v, want 0", e.cooldown)
	}
}

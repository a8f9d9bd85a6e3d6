package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGuard(t *testing.T, ttl time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGuard(client, ttl), mr
}

func TestTryAcquire_FirstSightingOnly(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour)
	ctx := context.Background()

	first, err := g.TryAcquire(ctx, "evt-1")
	if err != nil || !first {
		t.Fatalf("first TryAcquire() = %v, %v; want true, nil", first, err)
	}
	second, err := g.TryAcquire(ctx, "evt-1")
	if err != nil || second {
		t.Fatalf("second TryAcquire() = %v, %v; want false, nil", second, err)
	}

	if got := mr.TTL(KeyPrefix + "evt-1"); got != time.Hour {
		t.Errorf("TTL = %v, want 1h", got)
	}
}

func TestTryAcquire_BlankKeyAlwaysPasses(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour)
	ctx := context.Background()

	for _, key := range []string{"", "   ", ""} {
		ok, err := g.TryAcquire(ctx, key)
		if err != nil || !ok {
			t.Errorf("TryAcquire(%q) = %v, %v; want true, nil", key, ok, err)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("blank keys should not be stored, found %v", keys)
	}
}

func TestTryAcquire_ExpiresAfterTTL(t *testing.T) {
	g, mr := newTestGuard(t, time.Minute)
	ctx := context.Background()

	if ok, _ := g.TryAcquire(ctx, "evt-2"); !ok {
		t.Fatal("first TryAcquire() should succeed")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := g.TryAcquire(ctx, "evt-2"); !ok {
		t.Error("TryAcquire() after TTL expiry should succeed again")
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	g, _ := newTestGuard(t, time.Hour)
	ctx := context.Background()

	if ok, _ := g.TryAcquire(ctx, "evt-3"); !ok {
		t.Fatal("first TryAcquire() should succeed")
	}
	if err := g.Release(ctx, "evt-3"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := g.TryAcquire(ctx, "evt-3"); !ok {
		t.Error("TryAcquire() after Release() should succeed")
	}
	if err := g.Release(ctx, ""); err != nil {
		t.Errorf("Release(\"\") error = %v, want nil", err)
	}
}

func TestTryAcquire_ConcurrentSingleWinner(t *testing.T) {
	g, _ := newTestGuard(t, time.Hour)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := g.TryAcquire(ctx, "contended"); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", winners.Load())
	}
}

func TestTryAcquire_StoreError(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour)
	mr.Close()

	if _, err := g.TryAcquire(context.Background(), "evt-4"); err == nil {
		t.Error("TryAcquire() against a stopped store should return an error")
	}
}

func TestNewRedisGuard_DefaultTTL(t *testing.T) {
	g := NewRedisGuard(nil, 0)
	if g.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", g.ttl, DefaultTTL)
	}
}

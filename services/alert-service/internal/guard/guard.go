// Package guard de-duplicates redelivered log events by idempotency key.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces guard records in Redis.
	KeyPrefix = "alert:processed:"
	// DefaultTTL is how long a processed key is remembered.
	DefaultTTL = 24 * time.Hour
)

// RedisGuard records processed idempotency keys in Redis with SET NX, so
// concurrent consumers racing on the same key see exactly one winner.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a guard. A non-positive ttl falls back to DefaultTTL.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// TryAcquire returns true the first time a key is seen and false for every later sighting within the TTL.
// A blank key always returns true. Redis errors are returned as-is and should be treated as transient.
func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return true, nil
	}

	ok, err := g.client.SetNX(ctx, KeyPrefix+key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record idempotency key %q: %w", key, err)
	}
	return ok, nil
}

// Release forgets a key so a redelivered copy of the event is processed again.
// Releasing a blank key is a no-op.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}

	if err := g.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key %q: %w", key, err)
	}
	return nil
}

package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// LockKeyPrefix namespaces evaluator locks in Redis.
const LockKeyPrefix = "alert:evaluator:lock:"

// LockKey returns the evaluator lock of a rule. Like the window key it covers the
// rule's scope, so rules that share a name still lock independently.
func LockKey(rule rules.AlertRule) string {
	return LockKeyPrefix + strings.TrimPrefix(rule.WindowKey(), rules.WindowKeyPrefix)
}

// ErrLockNotObtained is returned by Locker.Obtain when the key is held elsewhere.
var ErrLockNotObtained = errors.New("evaluator lock not obtained")

// RedisLocker implements Locker with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker creates a locker on top of a go-redis client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

// Obtain tries once to take key for ttl.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lock, nil
}

// NoOpLocker always grants the lock. Used when a single instance runs the evaluator.
type NoOpLocker struct{}

// Obtain always succeeds.
func (NoOpLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return noOpLock{}, nil
}

type noOpLock struct{}

func (noOpLock) Release(context.Context) error { return nil }

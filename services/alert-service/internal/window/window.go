// Package window keeps per-rule sliding windows of event timestamps in Redis sorted sets.
package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyTTL is the minimum time a window key survives after its last append.
const DefaultKeyTTL = 5 * time.Minute

// appendScript adds one entry scored by event time and refreshes the key expiry in one round trip.
const appendScript = `
	local key = KEYS[1]
	local score = ARGV[1]
	local member = ARGV[2]
	local ttl_ms = ARGV[3]

	redis.call('ZADD', key, score, member)
	redis.call('PEXPIRE', key, ttl_ms)
	return 1
`

// RedisCounter appends event timestamps to sorted sets and counts them over trailing windows.
// Entries are scored by event time in unix milliseconds, so late events land in the right place.
type RedisCounter struct {
	client *redis.Client
	script *redis.Script
	keyTTL time.Duration
	now    func() time.Time
}

// Option configures a RedisCounter.
type Option func(*RedisCounter)

// WithKeyTTL sets the expiry refreshed on every append.
func WithKeyTTL(ttl time.Duration) Option {
	return func(c *RedisCounter) {
		if ttl > 0 {
			c.keyTTL = ttl
		}
	}
}

// WithClock overrides the time source used for Count and Prune.
func WithClock(now func() time.Time) Option {
	return func(c *RedisCounter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRedisCounter creates a counter backed by client.
func NewRedisCounter(client *redis.Client, opts ...Option) *RedisCounter {
	c := &RedisCounter{
		client: client,
		script: redis.NewScript(appendScript),
		keyTTL: DefaultKeyTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyTTLFor returns the key TTL needed so no entry inside the longest window expires early:
// the larger of base and twice the longest window.
func KeyTTLFor(base, longestWindow time.Duration) time.Duration {
	if 2*longestWindow > base {
		return 2 * longestWindow
	}
	return base
}

// KeyTTL returns the expiry applied on append.
func (c *RedisCounter) KeyTTL() time.Duration {
	return c.keyTTL
}

// Append records one occurrence at ts under a random member.
func (c *RedisCounter) Append(ctx context.Context, key string, ts time.Time) error {
	return c.AppendEntry(ctx, key, uuid.NewString(), ts)
}

// AppendEntry records one occurrence at ts under entryID. Appending the same entryID
// twice leaves a single entry, which makes redelivered appends idempotent.
func (c *RedisCounter) AppendEntry(ctx context.Context, key, entryID string, ts time.Time) error {
	err := c.script.Run(ctx, c.client, []string{key},
		ts.UnixMilli(), entryID, c.keyTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to append to window %s: %w", key, err)
	}
	return nil
}

// Count returns the number of entries with a timestamp in [now-window, now].
func (c *RedisCounter) Count(ctx context.Context, key string, windowSeconds int) (int64, error) {
	now := c.now()
	from := now.Add(-time.Duration(windowSeconds) * time.Second).UnixMilli()

	n, err := c.client.ZCount(ctx, key,
		strconv.FormatInt(from, 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count window %s: %w", key, err)
	}
	return n, nil
}

// Prune removes entries older than twice the window. The margin keeps late-arriving
// events that are still relevant to the next evaluation.
func (c *RedisCounter) Prune(ctx context.Context, key string, windowSeconds int) (int64, error) {
	cutoff := c.now().Add(-2 * time.Duration(windowSeconds) * time.Second).UnixMilli()

	n, err := c.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to prune window %s: %w", key, err)
	}
	return n, nil
}

package main

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// redisPinger adapts a Redis client to handlers.HealthChecker.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Package checkers provides health checks for the store backends.
package checkers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks the health of a Redis connection.
type RedisChecker struct {
	client redis.UniversalClient
	name   string
}

// NewRedisChecker creates a new Redis health checker. name defaults to "redis".
func NewRedisChecker(client redis.UniversalClient, name string) *RedisChecker {
	if name == "" {
		name = "redis"
	}
	return &RedisChecker{client: client, name: name}
}

// Name returns the name of this health check.
func (r *RedisChecker) Name() string {
	return r.name
}

// Check pings the Redis server.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks the Redis instance holding the option store,
// the delivery ledger and rate limit counters.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if r.client == nil {
		return errors.New("redis not configured")
	}
	return r.client.Ping(ctx).Err()
}

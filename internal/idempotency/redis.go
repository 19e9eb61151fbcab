package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "phantomviews:idempotency:"

// RedisRepository implements Repository on Redis. Records expire through
// key TTLs, so DeleteOlderThan has nothing to do.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisRepository creates a Redis-backed repository whose records live for ttl.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &RedisRepository{client: client, ttl: ttl, now: time.Now}
}

// Get retrieves a record by key.
func (r *RedisRepository) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	return &record, nil
}

// Store saves a completed record, overwriting only a processing claim.
func (r *RedisRepository) Store(ctx context.Context, record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	if record.Status == "" {
		record.Status = StatusCompleted
	}

	existing, err := r.Get(ctx, record.Key)
	switch {
	case err == nil && existing.Status != StatusProcessing:
		return ErrKeyExists
	case err != nil && !errors.Is(err, ErrKeyNotFound):
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+record.Key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// Claim uses SET NX so only one replica wins a given key.
func (r *RedisRepository) Claim(ctx context.Context, key, route string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	payload, err := json.Marshal(Record{
		Key:       key,
		Route:     route,
		CreatedAt: r.now(),
		Status:    StatusProcessing,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, redisKeyPrefix+key, payload, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release removes a processing claim.
func (r *RedisRepository) Release(ctx context.Context, key string) error {
	existing, err := r.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Status != StatusProcessing {
		return nil
	}
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan is a no-op; Redis expires records on its own.
func (r *RedisRepository) DeleteOlderThan(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

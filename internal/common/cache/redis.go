// Package cache provides the Redis-backed stores behind the transport
// middleware: a fixed-window rate limiter and an idempotency response cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration. An empty Addr disables Redis entirely.
type Config struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// New creates a Redis client.
func New(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RateLimiter is a fixed-window counter limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow implements middleware.RateLimiter.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rkey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		return false, fmt.Errorf("redis INCR: %w", err)
	}
	if count == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, rkey, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}

// IdempotencyStore caches serialized responses keyed by idempotency key.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates an idempotency store.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Get implements middleware.IdempotencyStore.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, fmt.Sprintf("idem:%s", key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET: %w", err)
	}
	return val, true, nil
}

// Set implements middleware.IdempotencyStore.
func (s *IdempotencyStore) Set(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, fmt.Sprintf("idem:%s", key), response, ttl).Err()
}

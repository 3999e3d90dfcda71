package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitPrefix = "sessionguard:ratelimit:"

// RateLimitRepository keeps fixed-window request counters in Redis.
type RateLimitRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRateLimitRepository constructs a rate limit repository. A nil client
// disables limiting.
func NewRateLimitRepository(client *redis.Client, logger *zap.Logger) *RateLimitRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitRepository{client: client, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (r *RateLimitRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Hit increments the counter for key in the current window and returns the
// new count and the time until the window resets.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if !r.Enabled() {
		return 0, 0, nil
	}

	fullKey := rateLimitPrefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.ExpireNX(ctx, fullKey, window)
		ttl = pipe.PTTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	reset := ttl.Val()
	if reset < 0 {
		reset = window
	}
	return incr.Val(), reset, nil
}

// Ping checks connectivity for readiness probes.
func (r *RateLimitRepository) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *RateLimitRepository) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}

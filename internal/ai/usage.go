package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageTracker counts third-party API calls per key so the portal can
// rotate credentials and stay under provider quotas. State lives in
// Redis, not in process memory, so every instance sees the same counts.
type UsageTracker struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewUsageTracker creates a tracker enforcing limit calls per window
func NewUsageTracker(rdb *redis.Client, prefix string, limit int, window time.Duration) *UsageTracker {
	if prefix == "" {
		prefix = "ai:usage"
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &UsageTracker{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (t *UsageTracker) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", t.prefix, key)
}

// RecordUse increments the usage counter for key, starting the window on
// first use.
func (t *UsageTracker) RecordUse(ctx context.Context, key string) error {
	rk := t.redisKey(key)

	count, err := t.rdb.Incr(ctx, rk).Result()
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if count == 1 {
		if err := t.rdb.Expire(ctx, rk, t.window).Err(); err != nil {
			return fmt.Errorf("failed to set usage window: %w", err)
		}
	}
	return nil
}

// Remaining returns how many calls are left for key in the current
// window. A tracker with no limit always reports headroom.
func (t *UsageTracker) Remaining(ctx context.Context, key string) (int, error) {
	if t.limit <= 0 {
		return 1, nil
	}

	count, err := t.rdb.Get(ctx, t.redisKey(key)).Int()
	if err == redis.Nil {
		return t.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}

	remaining := t.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

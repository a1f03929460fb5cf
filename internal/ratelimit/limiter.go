package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter backed by Redis, keyed per caller.
// Counters are best effort: a lost increment under race only lets one extra
// attempt through.
type Limiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewLimiter(rdb *redis.Client, max int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, max: max, window: window}
}

// Allow records one attempt for key and reports whether it is still within
// the limit. The first attempt of a window starts the expiry clock.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	counterKey := l.counterKey(key)

	n, err := l.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, counterKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return n <= int64(l.max), nil
}

// Reset clears the counter, used after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.counterKey(key)).Err()
}

func (l *Limiter) counterKey(key string) string {
	return "ratelimit:login:" + key
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type Counter interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// OrderRateLimiter allows at most limit order creations per owner within a
// fixed window.
type OrderRateLimiter struct {
	client Counter
	limit  int64
	window time.Duration
	prefix string
}

func NewOrderRateLimiter(client Counter, limit int64, window time.Duration, prefix string) *OrderRateLimiter {
	return &OrderRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (r *OrderRateLimiter) Allow(ctx context.Context, owner string) (bool, error) {
	const op = "OrderRateLimiter.Allow"

	key := r.prefix + owner

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	return count <= r.limit, nil
}

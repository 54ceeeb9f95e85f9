package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter with shared fixed windows in Redis, for
// deployments running more than one backend replica.
//
// Each key+route pair maps to a counter that expires with the window, so
// Redis handles decay and no janitor is needed.
type RedisLimiter struct {
	rdb     *redis.Client
	budgets map[Route]Budget
}

// NewRedisLimiter creates a limiter over the given client, with
// DefaultBudgets when budgets is nil.
func NewRedisLimiter(rdb *redis.Client, budgets map[Route]Budget) *RedisLimiter {
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	return &RedisLimiter{rdb: rdb, budgets: budgets}
}

// Allow implements Limiter. Redis errors fail open: a limiter outage must
// not take logins down with it.
func (r *RedisLimiter) Allow(ctx context.Context, key string, route Route, _ time.Time) (bool, time.Duration, error) {
	b, ok := r.budgets[route]
	if !ok || b.Max <= 0 {
		return true, 0, nil
	}

	id := "elib:ratelimit:" + string(route) + ":" + key

	count, err := r.rdb.Incr(ctx, id).Result()
	if err != nil {
		return true, 0, err
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, id, b.Window).Err(); err != nil {
			return true, 0, err
		}
	}

	if count > int64(b.Max) {
		ttl, err := r.rdb.PTTL(ctx, id).Result()
		if err != nil || ttl < 0 {
			ttl = b.Window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

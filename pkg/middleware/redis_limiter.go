package middleware

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "recolha:ratelimit:"

// RedisRateLimiter is a fixed window shared by every replica: INCR on the
// window key, with the TTL set when the key is first created.
type RedisRateLimiter struct {
	c      *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(c *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{c: c, limit: int64(limit), window: window}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	n, err := rl.c.Incr(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis ratelimit")
	}
	if n == 1 {
		if err := rl.c.Expire(ctx, redisKeyPrefix+key, rl.window).Err(); err != nil {
			return false, errors.Wrap(err, "redis ratelimit expire")
		}
	}
	return n <= rl.limit, nil
}

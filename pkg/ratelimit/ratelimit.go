package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter enforces per-role hourly query budgets. Each caller is keyed
// by user so one user cannot exhaust a role's budget for everyone.
type Limiter interface {
	Allow(ctx context.Context, role, userID string, perHour int) bool
}

// RedisLimiter applies limits through Redis so budgets hold across
// replicas. A Redis failure fails open with a logged warning.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{limiter: redis_rate.NewLimiter(rdb)}
}

func (l *RedisLimiter) Allow(ctx context.Context, role, userID string, perHour int) bool {
	if perHour <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := "ratelimit:" + role + ":" + userID
	res, err := l.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   perHour,
		Burst:  perHour,
		Period: time.Hour,
	})
	if err != nil {
		log.Printf("[RATELIMIT] redis check failed, allowing request: %v", err)
		return true
	}
	return res.Allowed > 0
}

// LocalLimiter is the in-process fallback when Redis is not configured.
// Limiters are created lazily per role+user and never expire; acceptable
// for single-instance deployments.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *LocalLimiter) Allow(_ context.Context, role, userID string, perHour int) bool {
	if perHour <= 0 {
		return true
	}
	key := role + ":" + userID

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(perHour)/3600), perHour)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

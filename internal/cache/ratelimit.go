package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter decides whether a user may perform another action within a
// budget of limit actions per window.
type Limiter interface {
	Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter counts actions in fixed windows shared by every server
// instance.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: "ratelimit:submit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := l.prefix + userID

	n, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", userID, err)
	}
	if n == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit %s: %w", userID, err)
		}
	}
	return n <= int64(limit), nil
}

// MemoryLimiter keeps a token bucket per user in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *MemoryLimiter) Allow(_ context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}

// FailoverLimiter prefers the primary limiter and switches to the fallback
// while the primary is failing. The primary is retried once retryAfter has
// passed since the last failure.
type FailoverLimiter struct {
	primary    Limiter
	fallback   Limiter
	logger     *zerolog.Logger
	retryAfter time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLimiter(primary, fallback Limiter, logger *zerolog.Logger) *FailoverLimiter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLimiter{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		retryAfter: time.Minute,
	}
}

func (f *FailoverLimiter) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) >= f.retryAfter
}

func (f *FailoverLimiter) Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Allow(ctx, userID, limit, window)
		if err == nil {
			if f.isDown.Swap(false) {
				f.logger.Info().Msg("Primary rate limiter recovered")
			}
			return ok, nil
		}
		f.mu.Lock()
		f.lastCheck = time.Now()
		f.mu.Unlock()
		if !f.isDown.Swap(true) {
			f.logger.Warn().Err(err).Msg("Primary rate limiter failed, using fallback")
		}
	}
	return f.fallback.Allow(ctx, userID, limit, window)
}

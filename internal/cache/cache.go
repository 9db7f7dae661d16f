// Package cache holds the optional Redis layer: a read-through JSON cache for
// rarely changing lists and the per-user submission limiter.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyRooms  = "rooms:list"
	KeyNotice = "notice"
)

// Cache stores JSON values in Redis. A Cache with no client never hits and
// ignores writes, so callers do not need to branch on whether Redis is
// configured.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get decodes the value under key into out and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if !c.enabled() {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Cache) Set(ctx context.Context, key string, val any) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops keys after a write to the underlying data.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	_ = c.redis.Del(ctx, keys...).Err()
}

// Fetch returns the cached value under key or loads, caches and returns it.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c.Get(ctx, key, &v) {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v)
	return v, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// Cache is the health-checked handle every cache-backed component receives.
// Calls that fail for any reason other than a key miss are reported as
// domain.ErrCacheUnavailable so callers can apply their degraded-mode rule.
type Cache struct{ *redis.Client }

// NewRedis creates a cache handle. It does not dial; use Ping to check health.
func NewRedis(addr, pass string, db int) *Cache {
	return &Cache{redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

// NewCache wraps an existing client
func NewCache(client *redis.Client) *Cache {
	return &Cache{client}
}

// Ping reports whether the cache answers
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return Degraded(err)
	}
	return nil
}

// Degraded classifies a go-redis error. nil and redis.Nil pass through.
func Degraded(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
}

// IsUnavailable reports whether err is a degraded-cache result
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrCacheUnavailable)
}

package payment

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/repository"
)

// MethodCache caches a user's payment-method list. Entries may be briefly
// stale between invalidation and the next refresh; the orchestrator always
// queries the provider on refresh.
type MethodCache interface {
	Get(ctx context.Context, userID uint) ([]Method, bool)
	Set(ctx context.Context, userID uint, methods []Method)
	Invalidate(ctx context.Context, userID uint)
}

// RedisMethodCache backs MethodCache with the shared Redis repository.
type RedisMethodCache struct {
	redis *repository.RedisRepository
	ttl   time.Duration
}

func NewRedisMethodCache(redis *repository.RedisRepository, ttl time.Duration) *RedisMethodCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisMethodCache{redis: redis, ttl: ttl}
}

func (c *RedisMethodCache) Get(ctx context.Context, userID uint) ([]Method, bool) {
	var methods []Method
	if err := c.redis.GetPaymentMethodsCache(ctx, userID, &methods); err != nil {
		return nil, false
	}
	return methods, true
}

func (c *RedisMethodCache) Set(ctx context.Context, userID uint, methods []Method) {
	// Cache failures are invisible to callers; the next read refreshes.
	_ = c.redis.CachePaymentMethods(ctx, userID, methods, c.ttl)
}

func (c *RedisMethodCache) Invalidate(ctx context.Context, userID uint) {
	_ = c.redis.InvalidatePaymentMethods(ctx, userID)
}

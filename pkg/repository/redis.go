package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// IsCacheMiss reports whether an error from GetJSON means the key is absent.
func IsCacheMiss(err error) bool {
	return err == redis.Nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Cached payment-method list, keyed per user. Invalidated on attach/detach
// and refreshed lazily on read-miss.

func methodCacheKey(userID uint) string {
	return fmt.Sprintf("payment_methods:%d", userID)
}

func (r *RedisRepository) CachePaymentMethods(ctx context.Context, userID uint, methods interface{}, ttl time.Duration) error {
	return r.SetJSON(ctx, methodCacheKey(userID), methods, ttl)
}

func (r *RedisRepository) GetPaymentMethodsCache(ctx context.Context, userID uint, dest interface{}) error {
	return r.GetJSON(ctx, methodCacheKey(userID), dest)
}

func (r *RedisRepository) InvalidatePaymentMethods(ctx context.Context, userID uint) error {
	return r.Del(ctx, methodCacheKey(userID))
}

// IncrWindow increments a fixed-window throttle counter, setting the window
// expiry on first hit, and returns the count in the current window.
func (r *RedisRepository) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the small slice of redis the service depends on. Implementations
// must be safe for concurrent use.
type Cache interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache implements Cache using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache from a redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// IncrWithExpiry increments key and refreshes its expiry in one round trip.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// AcquireLock takes a best-effort advisory lock. False means another holder
// currently owns it.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, "1", ttl).Result()
}

func (c *RedisCache) ReleaseLock(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

var _ Cache = (*RedisCache)(nil)

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares cached values between replicas. InvalidateAll bumps a
// version counter that is part of every key, so stale entries simply age out.
type RedisCache struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	logger     *zap.Logger
	versionKey string
}

func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		logger:     logger,
		versionKey: prefix + ":version",
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	k, err := c.key(ctx, key)
	if err != nil {
		c.logger.Warn("cache version lookup failed", zap.Error(err))
		return nil, false
	}
	val, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	k, err := c.key(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, k, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	k, err := c.key(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	newVersion, err := c.client.Incr(ctx, c.versionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	c.logger.Info("Cache invalidated", zap.String("prefix", c.prefix), zap.Int64("new_version", newVersion))
	return nil
}

func (c *RedisCache) key(ctx context.Context, key string) (string, error) {
	ver, err := c.client.Get(ctx, c.versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d:%s", c.prefix, ver, key), nil
}

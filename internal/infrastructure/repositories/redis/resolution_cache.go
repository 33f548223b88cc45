package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const resolutionKeyPrefix = "callplayer:resolve:"

type RedisResolutionCache struct {
	client *redis.Client
	prefix string
}

func NewRedisResolutionCache(client *redis.Client) ports.ResolutionCache {
	return &RedisResolutionCache{
		client: client,
		prefix: resolutionKeyPrefix,
	}
}

func (c *RedisResolutionCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisResolutionCache) Get(ctx context.Context, key string) (*domain.ResolvedMedia, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution from Redis: %w", err)
	}

	var media domain.ResolvedMedia
	if err := json.Unmarshal(data, &media); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolution: %w", err)
	}
	return &media, nil
}

func (c *RedisResolutionCache) Set(ctx context.Context, key string, media *domain.ResolvedMedia, ttl time.Duration) error {
	data, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set resolution in Redis: %w", err)
	}
	return nil
}

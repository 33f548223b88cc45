package memory

import (
	"context"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/pkg/cache"
)

type MemoryResolutionCache struct {
	cache *cache.Cache[domain.ResolvedMedia]
}

func NewMemoryResolutionCache(defaultTTL time.Duration) *MemoryResolutionCache {
	return &MemoryResolutionCache{
		cache: cache.New[domain.ResolvedMedia](defaultTTL),
	}
}

func (c *MemoryResolutionCache) Get(ctx context.Context, key string) (*domain.ResolvedMedia, error) {
	media, ok := c.cache.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &media, nil
}

func (c *MemoryResolutionCache) Set(ctx context.Context, key string, media *domain.ResolvedMedia, ttl time.Duration) error {
	c.cache.SetWithTTL(key, *media, ttl)
	return nil
}

func (c *MemoryResolutionCache) Close() {
	c.cache.Stop()
}

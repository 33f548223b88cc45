package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"

	"go.uber.org/zap"
)

// CachedResolver wraps a MediaResolver with a resolution cache. Cache
// failures degrade to a direct resolve.
type CachedResolver struct {
	base    ports.MediaResolver
	cache   ports.ResolutionCache
	ttl     time.Duration
	metrics ports.PlaybackMetrics
	logger  *zap.SugaredLogger
}

func NewCachedResolver(
	base ports.MediaResolver,
	cache ports.ResolutionCache,
	ttl time.Duration,
	metrics ports.PlaybackMetrics,
	logger *zap.SugaredLogger,
) ports.MediaResolver {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if ttl <= 0 || cache == nil {
		return &CachedResolver{base: base, metrics: metrics, logger: logger}
	}
	return &CachedResolver{
		base:    base,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, query string) (*domain.ResolvedMedia, error) {
	key := cacheKey(query)

	if r.cache != nil {
		media, err := r.cache.Get(ctx, key)
		if err == nil {
			r.metrics.RecordResolution(true, nil)
			return media, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.logger.Warnw("resolution cache read failed", "error", err)
		}
	}

	media, err := r.base.Resolve(ctx, query)
	r.metrics.RecordResolution(false, err)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, media, r.ttl); err != nil {
			r.logger.Warnw("resolution cache write failed", "error", err)
		}
	}
	return media, nil
}

func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

package repositories

import (
	"context"

	"callplayer/internal/core/ports"
	"callplayer/internal/infrastructure/repositories/memory"
	redisrepo "callplayer/internal/infrastructure/repositories/redis"
	"callplayer/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support. Queues are
// always process local; only the resolution cache may live in Redis.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger

	closers []func()
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory cache",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis resolution cache")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory resolution cache")
	}

	return factory
}

// CreateQueueStore creates the per-chat queue store.
func (f *RepositoryFactory) CreateQueueStore() ports.QueueStore {
	return memory.NewMemoryQueueStore()
}

// CreateResolutionCache creates a resolution cache (Redis or memory with fallback)
func (f *RepositoryFactory) CreateResolutionCache() ports.ResolutionCache {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisResolutionCache(f.redisClient)
	}
	c := memory.NewMemoryResolutionCache(f.cfg.Resolver.CacheTTL)
	f.closers = append(f.closers, c.Close)
	return c
}

// UsesRedis reports whether the Redis backend is active.
func (f *RepositoryFactory) UsesRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// Close releases the Redis connection and stops memory cache janitors.
func (f *RepositoryFactory) Close() error {
	for _, c := range f.closers {
		c()
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsesRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

// RedisClient returns the shared client, or nil on the memory backend.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.UsesRedis() {
		return nil
	}
	return f.redisClient
}

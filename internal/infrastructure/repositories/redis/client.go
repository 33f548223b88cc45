package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientOptions configures the shared cache connection.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	// ConnectTimeout bounds the initial ping and migrations. Defaults to 5s.
	ConnectTimeout time.Duration
}

// NewRedisClient connects, verifies the server answers and brings the
// keyspace up to the current schema. The client is closed on any failure.
func NewRedisClient(opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	minIdle := opts.PoolSize / 4
	if minIdle < 1 {
		minIdle = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: minIdle,
		DialTimeout:  opts.ConnectTimeout,
		// cache reads sit on the play path, so fail fast and resolve directly
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach Redis at %s: %w", opts.Address, err)
	}
	if err := Migrate(ctx, client, logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to migrate Redis keyspace: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}
	return client, nil
}

// CloseRedisClient closes client; nil is allowed.
func CloseRedisClient(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

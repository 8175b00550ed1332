package cache

import (
	"context"
	"fmt"
	"time"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the Redis-backed coordination primitives of the ledger:
// the gateway callback idempotency store and the scheduler tick lock.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration

	client redis.UniversalClient
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory
// implementations when Redis is disabled or unreachable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient uses an existing Redis client instead of dialing one from config
func WithClient(client redis.UniversalClient) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Client connects to Redis once and returns the shared client
func (f *Factory) Client(ctx context.Context) (redis.UniversalClient, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		return nil, fmt.Errorf("redis is disabled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.redisConfig.Addr(), err)
	}

	f.client = client
	return client, nil
}

// CreateIdempotencyStore returns a Redis store, or an in-memory store when
// Redis is unavailable and fallback is allowed
func (f *Factory) CreateIdempotencyStore(ctx context.Context) (shared.IdempotencyStore, error) {
	client, err := f.Client(ctx)
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultCallbackKeyPrefix), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for callback idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Duplicate gateway callbacks are only filtered per instance.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// CreateTickLock returns a Redis tick lock, or a process-local lock when
// Redis is unavailable and fallback is allowed
func (f *Factory) CreateTickLock(ctx context.Context) (appledger.TickLocker, error) {
	client, err := f.Client(ctx)
	if err == nil {
		f.logger.Info("using Redis scheduler tick lock")
		return NewRedisTickLock(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for scheduler lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process tick lock. "+
		"Overlapping ticks across instances are still deduplicated by the database.",
		zap.Error(err),
	)
	return NewInMemoryTickLock(), nil
}

// Close releases the Redis client if the factory created one
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

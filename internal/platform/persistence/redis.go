package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/config"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when a scope lock stays held past every retry
var ErrLockNotObtained = errors.New("scope lock not obtained")

type Redis struct {
	logger *slog.Logger
	client *redis.Client
}

func NewRedis(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	logger.Info("Connected to Redis", "addr", cfg.Addr)
	return &Redis{logger: logger, client: client}, nil
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	r.logger.Info("Closed Redis connection")
	return nil
}

// ScopeLocker serializes work on a named scope across processes
type ScopeLocker interface {
	// Lock blocks until key is held or retries run out; release must always be called.
	Lock(ctx context.Context, key string) (release func(), err error)
}

type RedisScopeLocker struct {
	locker      *redislock.Client
	ttl         time.Duration
	retries     int
	retryPeriod time.Duration
	logger      *slog.Logger
}

func NewRedisScopeLocker(client redislock.RedisClient, cfg *config.AllocatorConfig, logger *slog.Logger) *RedisScopeLocker {
	return &RedisScopeLocker{
		locker:      redislock.New(client),
		ttl:         cfg.LockTTL,
		retries:     cfg.LockRetries,
		retryPeriod: cfg.LockRetryPeriod,
		logger:      logger,
	}
}

func (l *RedisScopeLocker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.retryPeriod), l.retries),
	}
	lock, err := l.locker.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// context.Background so the lock is released even when the request was cancelled
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release scope lock", "key", key, "error", err)
		}
	}, nil
}

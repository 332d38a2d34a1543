// Package lock serialises import batches across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder owns the lock.
var ErrNotObtained = errors.New("lock not obtained")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker obtains named leases.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lease, error)
}

// Noop grants every lease immediately.
type Noop struct{}

func (Noop) Obtain(context.Context, string) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }

// Config describes the redis connection used for batch locks.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	// Wait bounds how long Obtain retries before giving up.
	Wait time.Duration `mapstructure:"wait"`
}

// RedisLocker holds leases in redis via redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker wraps an existing redis client.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{
		client: redislock.New(client),
		prefix: "sapingest:lock:",
		ttl:    ttl,
		wait:   wait,
	}
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lease, error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		attempts := int(l.wait / (250 * time.Millisecond))
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), attempts)
	}

	held, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return redisLease{held}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

func (r redisLease) Release(ctx context.Context) error {
	if err := r.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("failed to release lock %s: %w", r.lock.Key(), err)
	}
	return nil
}

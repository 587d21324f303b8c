package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fitcircle/fitcircle/cache/local"
	cacheredis "github.com/fitcircle/fitcircle/cache/redis"
	"github.com/fitcircle/fitcircle/config"
)

// Cache is the key/value surface used for sessions and notification counters.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// IncrBy adds delta to an integer value, creating it at 0 when missing.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// IsNotFound reports whether err is a cache miss from either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

// NewCache picks Redis when an address is configured and the in-process
// backend otherwise.
func NewCache(cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisAddr == "" {
		return local.New(local.Config{SweepInterval: cfg.LocalGCInterval}), nil
	}
	return cacheredis.New(cacheredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.KeyPrefix,
	})
}

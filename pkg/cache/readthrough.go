package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
)

// Store is the subset of Cache a ReadThrough needs.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

// ReadThrough serves values from a Store, loading misses through a singleflight group
// and refreshing hits in the background. A nil store disables caching.
type ReadThrough struct {
	store  Store
	sf     singleflight.Group
	ttl    time.Duration
	logger *zap.Logger

	// jitter spreads expirations; replaced in tests.
	jitter func(time.Duration) time.Duration
}

func NewReadThrough(store Store, ttl time.Duration, logger *zap.Logger) *ReadThrough {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("cache"),
		jitter: addTTLJitter,
	}
}

// addTTLJitter adds up to ±15s random jitter to TTL to avoid mass expiration.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jitter := time.Duration(rand.Intn(30)-15) * time.Second
	if ttl+jitter <= 0 {
		return ttl
	}
	return ttl + jitter
}

// Fetch returns the cached value for key, or loads it with fn and caches the result.
// Concurrent misses for the same key share one call to fn. Cache errors other than a
// miss are logged and treated as a miss.
func Fetch[T any](ctx context.Context, rt *ReadThrough, key string, fn FetchFunc[T]) (T, error) {
	var zero T
	if rt.store == nil {
		return fn(ctx)
	}

	var cached T
	err := rt.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		rt.logger.Debug("cache hit", zap.String("key", key))
		refreshInBackground(rt, key, fn)
		return cached, nil

	case errors.Is(err, redis.Nil):
		rt.logger.Debug("cache miss", zap.String("key", key))

	default:
		rt.logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := rt.sf.Do(key, func() (any, error) {
		return fetchAndStore(ctx, rt, key, fn)
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		rt.logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		rt.logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, nil
}

func fetchAndStore[T any](ctx context.Context, rt *ReadThrough, key string, fn FetchFunc[T]) (T, error) {
	var zero T

	value, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	go func(v T) {
		setCtx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
		defer cancel()

		ttl := rt.jitter(rt.ttl)
		if err := rt.store.Set(setCtx, key, v, ttl); err != nil {
			rt.logger.Warn("failed to set cache on miss", zap.String("key", key), zap.Error(err))
		} else {
			rt.logger.Debug("cache populated on miss", zap.String("key", key))
		}
	}(value)

	return value, nil
}

func refreshInBackground[T any](rt *ReadThrough, key string, fn FetchFunc[T]) {
	go func() {
		_, _, _ = rt.sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				rt.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}

			setCtx, cancelSet := context.WithTimeout(context.Background(), defaultSetTimeout)
			defer cancelSet()

			ttl := rt.jitter(rt.ttl)
			if err := rt.store.Set(setCtx, key, value, ttl); err != nil {
				rt.logger.Warn("failed to update cache in background", zap.String("key", key), zap.Error(err))
			} else {
				rt.logger.Debug("cache refreshed in background", zap.String("key", key), zap.Duration("ttl", ttl))
			}
			return value, nil
		})
	}()
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/cache"
	"github.com/spec-kit/identity-service/internal/observability"
)

// cacheAside holds the collaborators for cache-aside reads and invalidation.
// Cache failures are logged and counted, never returned: the store stays authoritative.
type cacheAside struct {
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// readThrough serves key from the cache, falling back to load on a miss or a
// cache error and then populating the cache.
func readThrough[T any](ctx context.Context, ca cacheAside, kind, key string, load func(context.Context) (T, error)) (T, error) {
	cached, ok, err := cache.GetJSON[T](ctx, ca.cache, key)
	switch {
	case err != nil:
		ca.metrics.RecordCacheLookup(kind, observability.CacheError)
		ca.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		ca.metrics.RecordCacheLookup(kind, observability.CacheHit)
		return cached, nil
	default:
		ca.metrics.RecordCacheLookup(kind, observability.CacheMiss)
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := cache.SetJSON(ctx, ca.cache, key, value, ca.ttl); err != nil {
		ca.metrics.RecordCacheFailure(kind, "set")
		ca.logger.Warn("cache populate failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// invalidate removes key after a committed store write.
func (ca cacheAside) invalidate(ctx context.Context, kind, key string) {
	if err := ca.cache.Remove(ctx, key); err != nil {
		ca.metrics.RecordCacheFailure(kind, "remove")
		ca.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

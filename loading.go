package lrugo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for a missing key.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Backing is the cache surface LoadingCache builds on.
// Both *Cache and *ShardedCache satisfy it.
type Backing[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V) (old V, replaced bool)
	Remove(key K) (V, bool)
}

// LoadingCache wraps a cache with read-through loading. Concurrent misses
// for the same key are collapsed into a single loader call whose result is
// shared by all waiters.
type LoadingCache[K comparable, V any] struct {
	cache   Backing[K, V]
	loader  Loader[K, V]
	group   singleflight.Group
	metrics MetricsCollector
	logger  *Logger
}

// NewLoading creates a LoadingCache over cache using loader for misses.
func NewLoading[K comparable, V any](cache Backing[K, V], loader Loader[K, V], optFns ...Option) (*LoadingCache[K, V], error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if loader == nil {
		return nil, ErrNilLoader
	}

	o := applyOptions(optFns)

	return &LoadingCache[K, V]{
		cache:   cache,
		loader:  loader,
		metrics: o.metricsCollector,
		logger:  o.logger,
	}, nil
}

// GetOrLoad returns the cached value for key, loading it on a miss.
//
// At most one loader call per key is in flight; other callers wait for its
// result. A waiter whose ctx is canceled stops waiting, but the load itself
// continues under the initiating caller's ctx. Loader errors are returned
// and never cached, so the next call retries.
func (lc *LoadingCache[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	var zero V

	if v, ok := lc.cache.Get(key); ok {
		return v, nil
	}

	start := time.Now()
	ch := lc.group.DoChan(lc.flightKey(key), func() (any, error) {
		// Another flight may have populated the cache while we queued.
		if v, ok := lc.cache.Get(key); ok {
			return v, nil
		}
		v, err := lc.loader(ctx, key)
		if err != nil {
			return nil, err
		}
		lc.cache.Put(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		lc.metrics.RecordLoad(time.Since(start), res.Err)
		lc.logger.LogLoad(ctx, res.Shared, res.Err)
		if res.Err != nil {
			return zero, fmt.Errorf("load %v: %w", key, res.Err)
		}
		return res.Val.(V), nil
	}
}

// Refresh loads key unconditionally and replaces the cached value.
func (lc *LoadingCache[K, V]) Refresh(ctx context.Context, key K) (V, error) {
	var zero V

	start := time.Now()
	v, err := lc.loader(ctx, key)
	lc.metrics.RecordLoad(time.Since(start), err)
	lc.logger.LogLoad(ctx, false, err)
	if err != nil {
		return zero, fmt.Errorf("refresh %v: %w", key, err)
	}
	lc.cache.Put(key, v)
	return v, nil
}

// Invalidate removes key from the underlying cache.
func (lc *LoadingCache[K, V]) Invalidate(key K) bool {
	_, ok := lc.cache.Remove(key)
	return ok
}

// flightKey builds the singleflight key. Keys are compared within a single
// LoadingCache, so the textual form cannot collide across key types.
func (lc *LoadingCache[K, V]) flightKey(key K) string {
	return fmt.Sprint(key)
}

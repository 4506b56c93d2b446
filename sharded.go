package lrugo

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"
	"time"
)

// ShardedCache partitions keys across independent Cache shards to reduce
// lock contention under concurrent load. Shard selection uses a seeded
// maphash over the key, so the distribution differs between cache instances.
//
// Capacity is divided across the shards (the remainder goes to the first
// shards, and every shard holds at least one entry). Recency is tracked per
// shard, so operations that need a global order (RemoveOldest, Keys, Resize)
// are not available; use Cache when those are required.
type ShardedCache[K comparable, V any] struct {
	shards []*Cache[K, V]
	mask   uint64
	seed   maphash.Seed

	metrics MetricsCollector
	logger  *Logger

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// NewSharded creates a sharded cache with the given total capacity.
// The shard count defaults to 16 and is configured with WithShards;
// it must be a power of two.
func NewSharded[K comparable, V any](capacity int, optFns ...Option) (*ShardedCache[K, V], error) {
	return NewShardedWithEvict[K, V](capacity, nil, optFns...)
}

// NewShardedWithEvict creates a sharded cache that invokes onEvict for every
// entry any shard drops on its own. See EvictCallback for the contract.
func NewShardedWithEvict[K comparable, V any](capacity int, onEvict EvictCallback[K, V], optFns ...Option) (*ShardedCache[K, V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	o := applyOptions(optFns)

	n := o.shards
	if n < 1 || n&(n-1) != 0 {
		return nil, &ErrInvalidShardCount{Shards: n}
	}

	// The shards run no janitors of their own; a single janitor sweeps all
	// shards from here.
	shardOpts := o
	shardOpts.janitorInterval = 0

	s := &ShardedCache[K, V]{
		shards:  make([]*Cache[K, V], n),
		mask:    uint64(n - 1),
		seed:    maphash.MakeSeed(),
		metrics: o.metricsCollector,
		logger:  o.logger,
	}

	base := capacity / n
	extra := capacity % n
	for i := range s.shards {
		shardCapacity := base
		if i < extra {
			shardCapacity++
		}
		if shardCapacity < 1 {
			shardCapacity = 1
		}

		shard, err := newCache[K, V](shardCapacity, shardOpts, onEvict)
		if err != nil {
			return nil, err
		}
		s.shards[i] = shard
	}

	if o.janitorInterval > 0 {
		s.janitorStop = make(chan struct{})
		s.janitorDone = make(chan struct{})
		go s.janitor(o.janitorInterval)
	}

	return s, nil
}

// shard returns the shard responsible for key.
func (s *ShardedCache[K, V]) shard(key K) *Cache[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)&s.mask]
}

// Put inserts a key-value pair, evicting within the key's shard if needed.
func (s *ShardedCache[K, V]) Put(key K, value V) (old V, replaced bool) {
	return s.shard(key).Put(key, value)
}

// PutTTL inserts a key-value pair with an explicit time-to-live.
func (s *ShardedCache[K, V]) PutTTL(key K, value V, ttl time.Duration) (old V, replaced bool) {
	return s.shard(key).PutTTL(key, value, ttl)
}

// Get returns the value for key and marks it most recently used in its shard.
func (s *ShardedCache[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

// Peek returns the value for key without refreshing its recency.
func (s *ShardedCache[K, V]) Peek(key K) (V, bool) {
	return s.shard(key).Peek(key)
}

// Contains reports whether key is present, without refreshing its recency.
func (s *ShardedCache[K, V]) Contains(key K) bool {
	return s.shard(key).Contains(key)
}

// GetOrSet returns the existing value for key if present, else inserts value.
func (s *ShardedCache[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	return s.shard(key).GetOrSet(key, value)
}

// GetOrSetFunc is like GetOrSet but computes the value only on a miss.
func (s *ShardedCache[K, V]) GetOrSetFunc(key K, valueFn func() V) (actual V, loaded bool) {
	return s.shard(key).GetOrSetFunc(key, valueFn)
}

// Remove removes the given key and returns its value.
func (s *ShardedCache[K, V]) Remove(key K) (V, bool) {
	return s.shard(key).Remove(key)
}

// Len returns the total number of entries across all shards.
func (s *ShardedCache[K, V]) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Cap returns the total capacity across all shards.
func (s *ShardedCache[K, V]) Cap() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Cap()
	}
	return total
}

// Shards returns the number of shards.
func (s *ShardedCache[K, V]) Shards() int {
	return len(s.shards)
}

// Purge removes all entries from all shards.
func (s *ShardedCache[K, V]) Purge() {
	for _, shard := range s.shards {
		shard.Purge()
	}
}

// RemoveExpired reclaims expired entries in all shards and returns the total.
func (s *ShardedCache[K, V]) RemoveExpired() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.RemoveExpired()
	}
	return total
}

// Stats returns a metrics snapshot when the cache was configured with a
// BasicMetricsCollector, and a zero Stats otherwise. All shards share the
// collector, so the snapshot covers the whole cache.
func (s *ShardedCache[K, V]) Stats() Stats {
	if b, ok := s.metrics.(*BasicMetricsCollector); ok {
		return b.GetStats()
	}
	return Stats{}
}

// Close stops the background janitor, if any. Close is idempotent.
func (s *ShardedCache[K, V]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.janitorStop != nil {
			close(s.janitorStop)
			<-s.janitorDone
		}
		for _, shard := range s.shards {
			if cerr := shard.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (s *ShardedCache[K, V]) janitor(interval time.Duration) {
	defer close(s.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			removed := s.RemoveExpired()
			s.logger.LogSweep(context.Background(), removed)
		}
	}
}

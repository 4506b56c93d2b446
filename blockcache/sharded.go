package blockcache

import (
	"hash/maphash"
	"sync"
)

const numShards = 64

// Sharded is a sharded LRU block cache for high-concurrency workloads.
// It distributes blocks across 64 shards to reduce lock contention; the
// byte budget is divided evenly across the shards.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

var _ Cache = (*Sharded)(nil)

// NewSharded creates a new sharded LRU cache.
func NewSharded(capacityBytes int64, optFns ...Option) *Sharded {
	shardCapacity := capacityBytes / numShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}

	s := &Sharded{
		seed: maphash.MakeSeed(),
	}

	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, optFns...)
	}

	return s
}

func (s *Sharded) shard(key Key) *LRU {
	return s.shards[maphash.Comparable(s.seed, key)&(numShards-1)]
}

// Get returns a cached block.
func (s *Sharded) Get(key Key) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a block.
func (s *Sharded) Set(key Key, b []byte) {
	s.shard(key).Set(key, b)
}

// Delete removes one block.
func (s *Sharded) Delete(key Key) bool {
	return s.shard(key).Delete(key)
}

// InvalidatePath removes every block of the given path across all shards.
// Shards are processed in parallel; this is expensive but rare.
func (s *Sharded) InvalidatePath(path string) int {
	var removed [numShards]int

	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range numShards {
		go func() {
			defer wg.Done()
			removed[i] = s.shards[i].InvalidatePath(path)
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range removed {
		total += n
	}
	return total
}

// InvalidateRange removes the blocks of one kind and path whose offsets
// fall in [lo, hi), across all shards.
func (s *Sharded) InvalidateRange(kind BlockKind, path string, lo, hi uint64) int {
	var removed [numShards]int

	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range numShards {
		go func() {
			defer wg.Done()
			removed[i] = s.shards[i].InvalidateRange(kind, path, lo, hi)
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range removed {
		total += n
	}
	return total
}

// Len returns the number of cached blocks across all shards.
func (s *Sharded) Len() int {
	total := 0
	for i := range numShards {
		total += s.shards[i].Len()
	}
	return total
}

// SizeBytes returns the bytes held across all shards.
func (s *Sharded) SizeBytes() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].SizeBytes()
	}
	return total
}

// Stats returns counters aggregated over all shards.
func (s *Sharded) Stats() Stats {
	var total Stats
	for i := range numShards {
		st := s.shards[i].Stats()
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Evictions += st.Evictions
		total.Rejections += st.Rejections
	}
	return total
}

// Close closes all shards.
func (s *Sharded) Close() error {
	var err error
	for i := range numShards {
		if cerr := s.shards[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// ShardStat describes one shard, for debugging distribution problems.
type ShardStat struct {
	Shard     int
	Entries   int
	SizeBytes int64
	Hits      int64
	Misses    int64
}

// ShardStats returns per-shard statistics.
func (s *Sharded) ShardStats() []ShardStat {
	stats := make([]ShardStat, numShards)
	for i := range numShards {
		st := s.shards[i].Stats()
		stats[i] = ShardStat{
			Shard:     i,
			Entries:   s.shards[i].Len(),
			SizeBytes: s.shards[i].SizeBytes(),
			Hits:      st.Hits,
			Misses:    st.Misses,
		}
	}
	return stats
}

package benchmark_test

import (
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/lrugo"
)

func BenchmarkPut_Fits(b *testing.B) {
	benchmarkPut(b, capMedium, capMedium)
}

func BenchmarkPut_Evicting(b *testing.B) {
	// Keyspace is 10x capacity, so nearly every insert evicts.
	benchmarkPut(b, capMedium, 10*capMedium)
}

func benchmarkPut(b *testing.B, capacity, keyspace int) {
	b.ReportAllocs()

	c := NewBenchCache(b, capacity)
	defer c.Close()

	keys := MakeKeys(keyspace)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(keys[i%keyspace], i)
	}
}

func BenchmarkGet_Hit(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)
	FillCache(b, c, keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get(keys[i%capMedium]); !ok {
			b.Fatal("expected hit")
		}
	}
}

func BenchmarkGet_Miss(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)
	FillCache(b, c, keys)

	misses := MakeKeys(2 * capMedium)[capMedium:]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get(misses[i%capMedium]); ok {
			b.Fatal("expected miss")
		}
	}
}

// BenchmarkPeek measures a lookup without the recency update, the cheapest
// read path the cache has. Compare against Get_Hit to see what the list
// maintenance costs.
func BenchmarkPeek(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)
	FillCache(b, c, keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Peek(keys[i%capMedium]); !ok {
			b.Fatal("expected hit")
		}
	}
}

func BenchmarkContains(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)
	FillCache(b, c, keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Contains(keys[i%capMedium])
	}
}

func BenchmarkGetOrSet(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrSet(keys[i%capMedium], i)
	}
}

// BenchmarkGet_Parallel measures read throughput on the single-mutex cache.
// All goroutines contend on one lock; this is the baseline the sharded
// variant is meant to beat.
func BenchmarkGet_Parallel(b *testing.B) {
	b.ReportAllocs()

	c := NewBenchCache(b, capMedium)
	defer c.Close()

	keys := MakeKeys(capMedium)
	FillCache(b, c, keys)

	var idx atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := keys[idx.Add(1)%capMedium]
			if _, ok := c.Get(key); !ok {
				b.Fatal("expected hit")
			}
		}
	})
}

// BenchmarkShardedGet_Parallel measures read throughput across shard counts.
func BenchmarkShardedGet_Parallel(b *testing.B) {
	shardCounts := []int{1, 4, 16}

	for _, shards := range shardCounts {
		b.Run("shards="+strconv.Itoa(shards), func(b *testing.B) {
			b.ReportAllocs()

			c := NewBenchSharded(b, capMedium, lrugo.WithShards(shards))
			defer c.Close()

			keys := MakeKeys(capMedium)
			for i, key := range keys {
				c.Put(key, i)
			}

			var idx atomic.Uint64

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					// Sharded capacity splits per shard, so some keys may
					// have been evicted; a miss is not an error here.
					c.Get(keys[idx.Add(1)%capMedium])
				}
			})
		})
	}
}

// BenchmarkShardedPut_Parallel measures write throughput across shard counts.
func BenchmarkShardedPut_Parallel(b *testing.B) {
	shardCounts := []int{1, 4, 16}

	for _, shards := range shardCounts {
		b.Run("shards="+strconv.Itoa(shards), func(b *testing.B) {
			b.ReportAllocs()

			c := NewBenchSharded(b, capMedium, lrugo.WithShards(shards))
			defer c.Close()

			keys := MakeKeys(capMedium)

			var idx atomic.Uint64

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					i := idx.Add(1)
					c.Put(keys[i%capMedium], int(i))
				}
			})
		})
	}
}

// Package lrugo provides a bounded, recency-ordered key-value cache for Go.
//
// A Cache holds a limited number of key-value pairs. When an insertion pushes
// the cache past its capacity, the least-recently-used pair (where "used"
// means a lookup or an insert of that key) is evicted automatically.
//
// # Quick Start
//
//	c, _ := lrugo.New[int, string](2)
//
//	c.Put(1, "a")
//	c.Put(2, "b")
//	c.Put(3, "c")            // evicts 1, the least recently used
//
//	_, ok := c.Get(1)        // ok == false
//	v, _ := c.Get(2)         // "b", now most recently used
//
// # Expiry
//
// Entries can carry a time-to-live. Expired entries are treated as absent and
// removed lazily on access, or eagerly by a background janitor:
//
//	c, _ := lrugo.New[string, []byte](1024,
//	    lrugo.WithTTL(5*time.Minute),
//	    lrugo.WithJanitor(time.Minute),
//	)
//	defer c.Close()
//
//	c.Put("session", data)             // expires in 5m
//	c.PutTTL("pinned", data, 0)        // never expires
//
// # Sharding
//
// For high-concurrency workloads, ShardedCache partitions keys across
// independent shards to reduce lock contention:
//
//	c, _ := lrugo.NewSharded[uint64, []byte](1<<20, lrugo.WithShards(64))
//
// # Loading
//
// LoadingCache adds read-through loading with single-flight deduplication:
//
//	lc, _ := lrugo.NewLoading(c, func(ctx context.Context, key string) ([]byte, error) {
//	    return fetchFromOrigin(ctx, key)
//	})
//	v, err := lc.GetOrLoad(ctx, "hot-key")
//
// # Snapshots
//
// A cache can be saved to and restored from a compact binary snapshot,
// preserving recency order and remaining TTLs:
//
//	_ = c.SaveToFile("cache.snap")
//	c, _ = lrugo.NewFromFile[string, []byte]("cache.snap")
//
// # Key Features
//
//   - O(1) Put/Get/Remove with strict LRU eviction order
//   - Per-entry and default TTL with lazy or janitor-driven expiry
//   - Sharded variant for multi-core scaling
//   - Single-flight read-through loading
//   - Compressed, checksummed snapshots (LZ4/ZSTD)
//   - Byte-budget block caching with tiered memory/disk storage (package blockcache)
//   - Pluggable backing stores: local mmap, S3, MinIO, DynamoDB (package store)
package lrugo

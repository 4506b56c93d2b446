// Package blockcache provides byte-budget caching for immutable blocks.
//
// Where the root package caches whole values and counts entries, this
// package caches fixed-size byte blocks and counts bytes. Blocks are
// addressed by (kind, path, offset), which keeps keys stable across
// processes and lets whole paths or offset ranges be invalidated at once.
//
// # Memory tiers
//
// LRU is the single-lock building block. Sharded spreads blocks over 64
// LRU shards for concurrent workloads. Both track cached offsets per
// (kind, path) in roaring bitmaps, so InvalidatePath and InvalidateRange
// visit only the affected blocks.
//
// # Disk tier
//
// For remote backends, Disk persists blocks as files under a root
// directory: writes happen in the background with a bounded worker pool,
// and the index is rebuilt by walking the directory on open, so a warm
// cache survives restarts.
//
// # Tiered
//
// Tiered stacks Sharded over Disk: disk hits promote into memory, memory
// evictions demote to disk. An optional resource.Controller caps the
// memory held across caches and paces background write IO.
package blockcache

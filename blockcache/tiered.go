package blockcache

import (
	"sync/atomic"

	"github.com/hupe1980/lrugo/resource"
)

// TieredConfig holds configuration for a two-tier cache.
type TieredConfig struct {
	// MemoryBytes is the byte budget of the in-memory tier.
	MemoryBytes int64
	// Disk configures the on-disk tier.
	Disk DiskConfig
	// Admission optionally filters what the memory tier accepts.
	Admission AdmissionFunc
	// Controller optionally accounts the memory tier against a shared
	// budget. It is also handed to the disk tier for IO pacing unless
	// Disk.Controller is set.
	Controller *resource.Controller
}

// Tiered stacks a sharded in-memory cache on top of a disk cache.
// Memory misses are served from disk and promoted; blocks evicted from
// memory are demoted to disk. The tiers are inclusive: a promoted block
// keeps its file until the disk tier evicts it.
type Tiered struct {
	mem  *Sharded
	disk *Disk

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Cache = (*Tiered)(nil)

// NewTiered creates a two-tier cache.
func NewTiered(cfg TieredConfig) (*Tiered, error) {
	if cfg.Disk.Controller == nil {
		cfg.Disk.Controller = cfg.Controller
	}

	disk, err := NewDisk(cfg.Disk)
	if err != nil {
		return nil, err
	}

	memOpts := []Option{
		WithOnEvict(func(key Key, b []byte) {
			disk.Set(key, b)
		}),
	}
	if cfg.Admission != nil {
		memOpts = append(memOpts, WithAdmission(cfg.Admission))
	}
	if cfg.Controller != nil {
		memOpts = append(memOpts, WithController(cfg.Controller))
	}

	return &Tiered{
		mem:  NewSharded(cfg.MemoryBytes, memOpts...),
		disk: disk,
	}, nil
}

// Get returns a cached block from either tier. A disk hit promotes the
// block into memory.
func (t *Tiered) Get(key Key) ([]byte, bool) {
	if b, ok := t.mem.Get(key); ok {
		t.hits.Add(1)
		return b, true
	}

	if b, ok := t.disk.Get(key); ok {
		t.mem.Set(key, b)
		t.hits.Add(1)
		return b, true
	}

	t.misses.Add(1)
	return nil, false
}

// Set caches a block in the memory tier. It reaches disk once memory
// pressure demotes it.
func (t *Tiered) Set(key Key, b []byte) {
	t.mem.Set(key, b)
}

// Delete removes one block from both tiers.
func (t *Tiered) Delete(key Key) bool {
	inMem := t.mem.Delete(key)
	onDisk := t.disk.Delete(key)
	return inMem || onDisk
}

// InvalidatePath removes every block of the given path from both tiers.
// The count includes blocks held in both.
func (t *Tiered) InvalidatePath(path string) int {
	return t.mem.InvalidatePath(path) + t.disk.InvalidatePath(path)
}

// InvalidateRange removes the blocks of one kind and path whose offsets
// fall in [lo, hi) from both tiers.
func (t *Tiered) InvalidateRange(kind BlockKind, path string, lo, hi uint64) int {
	return t.mem.InvalidateRange(kind, path, lo, hi) + t.disk.InvalidateRange(kind, path, lo, hi)
}

// Len returns the number of cached blocks; a block resident in both
// tiers counts twice.
func (t *Tiered) Len() int {
	return t.mem.Len() + t.disk.Len()
}

// SizeBytes returns the bytes held across both tiers.
func (t *Tiered) SizeBytes() int64 {
	return t.mem.SizeBytes() + t.disk.SizeBytes()
}

// Stats returns end-to-end counters: a disk hit after a memory miss is
// one tiered hit. Evictions and rejections are summed over the tiers.
func (t *Tiered) Stats() Stats {
	memStats := t.mem.Stats()
	diskStats := t.disk.Stats()
	return Stats{
		Hits:       t.hits.Load(),
		Misses:     t.misses.Load(),
		Evictions:  memStats.Evictions + diskStats.Evictions,
		Rejections: memStats.Rejections + diskStats.Rejections,
	}
}

// Close closes both tiers, waiting for in-flight demotions to land.
func (t *Tiered) Close() error {
	memErr := t.mem.Close()
	diskErr := t.disk.Close()
	if memErr != nil {
		return memErr
	}
	return diskErr
}

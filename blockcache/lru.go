package blockcache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// LRU is a byte-budget LRU block cache.
//
// Beyond the usual keyed table it maintains a roaring bitmap of cached
// offsets per (kind, path), so InvalidatePath and InvalidateRange touch
// only the affected blocks instead of scanning the whole table.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	index     map[pathKey]*roaring64.Bitmap
	opts      options

	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	rejections atomic.Int64
}

var _ Cache = (*LRU)(nil)

type pathKey struct {
	kind BlockKind
	path string
}

type entry struct {
	key   Key
	value []byte
}

// NewLRU creates a new LRU cache with the given capacity in bytes.
func NewLRU(capacityBytes int64, optFns ...Option) *LRU {
	var opts options
	for _, fn := range optFns {
		fn(&opts)
	}

	return &LRU{
		capacity:  capacityBytes,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		index:     make(map[pathKey]*roaring64.Bitmap),
		opts:      opts,
	}
}

// Get returns a cached block.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a block. Oversized blocks and blocks refused by the
// admission filter or the resource controller are dropped silently.
func (c *LRU) Set(key Key, b []byte) {
	c.mu.Lock()
	evs := c.set(key, b)
	c.mu.Unlock()

	for _, ent := range evs {
		c.opts.onEvict(ent.key, ent.value)
	}
}

func (c *LRU) set(key Key, b []byte) []*entry {
	// Update in place if the key is already cached.
	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)

		oldSize := int64(len(ent.Value.(*entry).value))
		newSize := int64(len(b))
		if newSize > oldSize {
			// If the shared budget denies the growth, keep the old value.
			if !c.opts.rc.TryAcquireMemory(newSize - oldSize) {
				c.rejections.Add(1)
				return nil
			}
		} else if newSize < oldSize {
			c.opts.rc.ReleaseMemory(oldSize - newSize)
		}

		c.size += newSize - oldSize
		ent.Value.(*entry).value = b
		return c.evictFor(0)
	}

	itemSize := int64(len(b))

	// A block larger than the whole cache can never fit.
	if itemSize > c.capacity {
		c.rejections.Add(1)
		return nil
	}

	if c.opts.admit != nil && !c.opts.admit(key, len(b)) {
		c.rejections.Add(1)
		return nil
	}

	// Evict locally first; that releases budget before we acquire more.
	evs := c.evictFor(itemSize)

	if !c.opts.rc.TryAcquireMemory(itemSize) {
		c.rejections.Add(1)
		return evs
	}

	element := c.evictList.PushFront(&entry{key: key, value: b})
	c.items[key] = element
	c.indexAdd(key)
	c.size += itemSize
	return evs
}

// Delete removes one block. Unlike eviction it does not demote.
func (c *LRU) Delete(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if ok {
		c.removeElement(ent)
	}
	return ok
}

// InvalidatePath removes every block of the given path, across all kinds.
func (c *LRU) InvalidatePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for pk, bm := range c.index {
		if pk.path != path {
			continue
		}
		// Materialize the offsets first; removal mutates the bitmap.
		for _, off := range bm.ToArray() {
			if ent, ok := c.items[Key{Kind: pk.kind, Path: path, Offset: off}]; ok {
				c.removeElement(ent)
				removed++
			}
		}
	}
	return removed
}

// InvalidateRange removes the blocks of one kind and path whose offsets
// fall in [lo, hi).
func (c *LRU) InvalidateRange(kind BlockKind, path string, lo, hi uint64) int {
	if hi <= lo {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bm, ok := c.index[pathKey{kind: kind, path: path}]
	if !ok {
		return 0
	}

	var offsets []uint64
	it := bm.Iterator()
	it.AdvanceIfNeeded(lo)
	for it.HasNext() {
		off := it.Next()
		if off >= hi {
			break
		}
		offsets = append(offsets, off)
	}

	removed := 0
	for _, off := range offsets {
		if ent, ok := c.items[Key{Kind: kind, Path: path, Offset: off}]; ok {
			c.removeElement(ent)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SizeBytes returns the bytes held by cached blocks.
func (c *LRU) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cumulative counters.
func (c *LRU) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Rejections: c.rejections.Load(),
	}
}

// Close releases the shared budget held by cached blocks.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.rc != nil {
		c.opts.rc.ReleaseMemory(c.size)
	}
	c.items = make(map[Key]*list.Element)
	c.index = make(map[pathKey]*roaring64.Bitmap)
	c.evictList.Init()
	c.size = 0
	return nil
}

// Internal helpers. Callers must hold c.mu.

func (c *LRU) evictFor(extra int64) []*entry {
	var evs []*entry
	for c.size+extra > c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		ent := c.removeElement(element)
		c.evictions.Add(1)
		if c.opts.onEvict != nil {
			evs = append(evs, ent)
		}
	}
	return evs
}

func (c *LRU) removeElement(e *list.Element) *entry {
	c.evictList.Remove(e)
	ent := e.Value.(*entry)
	delete(c.items, ent.key)
	c.indexRemove(ent.key)

	itemSize := int64(len(ent.value))
	c.size -= itemSize
	c.opts.rc.ReleaseMemory(itemSize)
	return ent
}

func (c *LRU) indexAdd(key Key) {
	pk := pathKey{kind: key.Kind, path: key.Path}
	bm, ok := c.index[pk]
	if !ok {
		bm = roaring64.New()
		c.index[pk] = bm
	}
	bm.Add(key.Offset)
}

func (c *LRU) indexRemove(key Key) {
	pk := pathKey{kind: key.Kind, path: key.Path}
	if bm, ok := c.index[pk]; ok {
		bm.Remove(key.Offset)
		if bm.IsEmpty() {
			delete(c.index, pk)
		}
	}
}

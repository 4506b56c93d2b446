package blockcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/lrugo/resource"
)

// DiskConfig holds configuration for the disk cache.
type DiskConfig struct {
	// RootDir is the directory where cache files are stored.
	RootDir string
	// MaxSizeBytes is the maximum size of the cache in bytes.
	MaxSizeBytes int64
	// MaxConcurrentWrites limits background disk writes to prevent
	// unbounded goroutines. Defaults to 16 if <= 0.
	MaxConcurrentWrites int64
	// Controller optionally paces background write IO.
	Controller *resource.Controller
}

// Disk implements Cache backed by the local filesystem. Blocks are
// written as one file each, named after the key, so the in-memory index
// can be rebuilt by walking RootDir on open.
//
// Writes happen in the background; a freshly Set block misses until its
// file has landed. That is acceptable for a warm-up tier.
type Disk struct {
	mu          sync.Mutex
	rootDir     string
	maxSize     int64
	currentSize int64
	rc          *resource.Controller

	// writeSem bounds concurrent background writes.
	writeSem *semaphore.Weighted

	// Index
	items   map[Key]*diskEntry
	lruHead *diskEntry
	lruTail *diskEntry
	wg      sync.WaitGroup

	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	rejections atomic.Int64
}

var _ Cache = (*Disk)(nil)

type diskEntry struct {
	key        Key
	size       int64
	filePath   string
	next, prev *diskEntry
}

// NewDisk creates a new disk-backed block cache. It scans RootDir to
// rebuild the index of blocks left behind by a previous process.
func NewDisk(cfg DiskConfig) (*Disk, error) {
	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, err
	}

	maxWrites := cfg.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = 16
	}

	c := &Disk{
		rootDir:  cfg.RootDir,
		maxSize:  cfg.MaxSizeBytes,
		rc:       cfg.Controller,
		items:    make(map[Key]*diskEntry),
		writeSem: semaphore.NewWeighted(maxWrites),
	}

	c.scanExistingFiles()

	return c, nil
}

func (c *Disk) scanExistingFiles() {
	// Expected layout: root/<Path>/<Kind>-<Offset>.blk
	_ = filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries, keep scanning
		}
		if info.IsDir() {
			return nil
		}

		key, ok := c.parsePathToKey(path)
		if !ok {
			return nil
		}

		c.addToLRU(key, path, info.Size())
		return nil
	})
}

// encodeKeyToRelPath creates a relative path from a key.
// Format: <Path>/<Kind>-<Offset>.blk, with Path preserved as directory
// structure. Blocks without a path land under "_misc".
func (c *Disk) encodeKeyToRelPath(key Key) string {
	fileName := fmt.Sprintf("%d-%d.blk", key.Kind, key.Offset)
	if key.Path != "" {
		return filepath.Join(key.Path, fileName)
	}
	return filepath.Join("_misc", fileName)
}

func (c *Disk) parsePathToKey(absPath string) (Key, bool) {
	relPath, err := filepath.Rel(c.rootDir, absPath)
	if err != nil {
		return Key{}, false
	}

	dir, file := filepath.Split(relPath)

	var kind int
	var off uint64

	n, err := fmt.Sscanf(file, "%d-%d.blk", &kind, &off)
	if err != nil || n != 2 {
		return Key{}, false
	}

	var k Key
	k.Kind = BlockKind(kind)
	k.Offset = off

	if dir != "" {
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		if dir != "_misc" {
			k.Path = dir
		}
	}

	return k, true
}

// Get returns a cached block, reading it from disk.
func (c *Disk) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	ent, ok := c.items[key]
	if ok {
		c.moveToFront(ent)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(ent.filePath)
	if err != nil {
		// File vanished underneath the index.
		c.mu.Lock()
		c.removeEntry(ent)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set caches a block, writing it to disk in the background. If all write
// slots are busy the block is simply not cached.
func (c *Disk) Set(key Key, b []byte) {
	c.mu.Lock()

	// Blocks are immutable, so an existing entry is only refreshed.
	if ent, ok := c.items[key]; ok {
		c.moveToFront(ent)
		c.mu.Unlock()
		return
	}

	size := int64(len(b))
	absPath := filepath.Join(c.rootDir, c.encodeKeyToRelPath(key))

	// Reserve space up front.
	for c.currentSize+size > c.maxSize {
		if c.lruTail == nil {
			break
		}
		c.evictOne()
	}

	c.mu.Unlock()

	if !c.writeSem.TryAcquire(1) {
		c.rejections.Add(1)
		return
	}

	// The index is only updated once the write has landed; parallel Gets
	// miss and hit the backend again during warm-up.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)

		if err := c.rc.AcquireIO(context.Background(), len(b)); err != nil {
			return
		}

		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return
		}

		tmpFile, err := os.CreateTemp(filepath.Dir(absPath), "tmp-blk-*")
		if err != nil {
			return
		}
		tmpName := tmpFile.Name()

		defer func() {
			if _, err := os.Stat(tmpName); err == nil {
				_ = os.Remove(tmpName)
			}
		}()

		if _, err := tmpFile.Write(b); err != nil {
			_ = tmpFile.Close()
			return
		}
		if err := tmpFile.Close(); err != nil {
			return
		}

		if err := os.Rename(tmpName, absPath); err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		// Recheck capacity; other writes may have landed meanwhile.
		for c.currentSize+size > c.maxSize {
			if c.lruTail == nil {
				break
			}
			c.evictOne()
		}

		c.addToLRU(key, absPath, size)
	}()
}

// Delete removes one block and its file.
func (c *Disk) Delete(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if ok {
		_ = os.Remove(ent.filePath)
		c.removeEntry(ent)
	}
	return ok
}

// InvalidatePath removes every block of the given path, across all kinds.
func (c *Disk) InvalidatePath(path string) int {
	return c.invalidate(func(k Key) bool {
		return k.Path == path
	})
}

// InvalidateRange removes the blocks of one kind and path whose offsets
// fall in [lo, hi).
func (c *Disk) InvalidateRange(kind BlockKind, path string, lo, hi uint64) int {
	if hi <= lo {
		return 0
	}
	return c.invalidate(func(k Key) bool {
		return k.Kind == kind && k.Path == path && k.Offset >= lo && k.Offset < hi
	})
}

func (c *Disk) invalidate(predicate func(key Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*diskEntry
	for k, ent := range c.items {
		if predicate(k) {
			toRemove = append(toRemove, ent)
		}
	}

	for _, ent := range toRemove {
		_ = os.Remove(ent.filePath)
		c.removeEntry(ent)
	}
	return len(toRemove)
}

// Len returns the number of indexed blocks.
func (c *Disk) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SizeBytes returns the bytes held by indexed blocks.
func (c *Disk) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Stats returns cumulative counters.
func (c *Disk) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Rejections: c.rejections.Load(),
	}
}

// Close waits for all background writes to complete. Cached files stay
// on disk for the next process.
func (c *Disk) Close() error {
	c.wg.Wait()
	return nil
}

// Internal LRU helpers. Callers must hold c.mu.

func (c *Disk) addToLRU(key Key, path string, size int64) {
	// Two racing writers can land the same block twice.
	if old, ok := c.items[key]; ok {
		c.removeEntry(old)
	}

	ent := &diskEntry{
		key:      key,
		filePath: path,
		size:     size,
	}
	c.items[key] = ent
	c.currentSize += size

	if c.lruHead == nil {
		c.lruHead = ent
		c.lruTail = ent
	} else {
		ent.next = c.lruHead
		c.lruHead.prev = ent
		c.lruHead = ent
	}
}

func (c *Disk) moveToFront(ent *diskEntry) {
	if c.lruHead == ent {
		return
	}

	// Detach
	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if c.lruTail == ent {
		c.lruTail = ent.prev
	}

	// Attach front
	ent.next = c.lruHead
	ent.prev = nil
	if c.lruHead != nil {
		c.lruHead.prev = ent
	}
	c.lruHead = ent
	if c.lruTail == nil {
		c.lruTail = ent
	}
}

func (c *Disk) removeEntry(ent *diskEntry) {
	// A Get that dropped the lock for file IO can present an entry that
	// was removed or replaced in the meantime.
	if c.items[ent.key] != ent {
		return
	}

	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.lruHead = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.lruTail = ent.prev
	}

	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

func (c *Disk) evictOne() {
	if c.lruTail == nil {
		return
	}
	_ = os.Remove(c.lruTail.filePath)
	c.evictions.Add(1)
	c.removeEntry(c.lruTail)
}

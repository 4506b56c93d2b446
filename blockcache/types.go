package blockcache

import (
	"github.com/hupe1980/lrugo/resource"
)

// BlockKind separates key spaces that share a path.
type BlockKind uint8

const (
	KindUnknown BlockKind = iota
	KindData              // payload blocks
	KindIndex             // lookup / index blocks
	KindMeta              // headers, footers, manifests
)

// Key identifies one immutable block of a backing source.
// Keys must be stable across processes so a disk tier can be rebuilt.
type Key struct {
	Kind BlockKind
	// Path identifies the source, usually a file or object name.
	Path string
	// Offset is a logical block identifier within the source, e.g. a
	// block index or a block-aligned byte offset.
	Offset uint64
}

// Stats holds cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	// Rejections counts Set calls that were not admitted: oversized
	// values, admission refusals, and resource budget denials.
	Rejections int64
}

// AdmissionFunc decides whether a new block should be cached.
// Start simple, e.g. size-based or kind-based.
type AdmissionFunc func(key Key, sizeBytes int) bool

// Cache is a byte-oriented cache for immutable blocks, budgeted in bytes
// rather than entries. Returned slices must be treated as read-only.
type Cache interface {
	// Get returns a cached block. ok=false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b; the caller must
	// treat it as immutable afterwards.
	Set(key Key, b []byte)
	// Delete removes one block. It reports whether the block was present.
	Delete(key Key) bool
	// InvalidatePath removes every block of the given path, across all
	// kinds, and returns the number of blocks removed.
	InvalidatePath(path string) int
	// InvalidateRange removes the blocks of one kind and path whose
	// offsets fall in [lo, hi) and returns the number removed.
	InvalidateRange(kind BlockKind, path string, lo, hi uint64) int
	// Len returns the number of cached blocks.
	Len() int
	// SizeBytes returns the bytes held by cached blocks.
	SizeBytes() int64
	// Stats returns cumulative counters.
	Stats() Stats
	// Close releases any resources (e.g. background workers).
	Close() error
}

type options struct {
	admit   AdmissionFunc
	rc      *resource.Controller
	onEvict func(key Key, b []byte)
}

// Option configures the in-memory cache tiers.
type Option func(*options)

// WithAdmission installs fn as the admission filter consulted before a
// new block is cached. Updates of already cached blocks bypass it.
func WithAdmission(fn AdmissionFunc) Option {
	return func(o *options) {
		o.admit = fn
	}
}

// WithController accounts all cached bytes against rc, so several caches
// can share one memory budget. A Set that would exceed the budget is
// rejected rather than blocked.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithOnEvict registers fn to run after a block is evicted to make room.
// Explicit removals (Delete, InvalidatePath, InvalidateRange) do not
// trigger it. fn runs outside the cache lock.
func WithOnEvict(fn func(key Key, b []byte)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

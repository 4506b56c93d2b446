package lrugo

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/lrugo/codec"
	"github.com/hupe1980/lrugo/persistence"
)

// snapshotEntry is the wire form of one cache entry. Keys and values are
// encoded by the snapshot codec; expiry is an absolute deadline so it
// survives process restarts.
type snapshotEntry[K comparable, V any] struct {
	Key       K     `json:"k"`
	Value     V     `json:"v"`
	ExpiresAt int64 `json:"e,omitempty"` // unix nanoseconds, zero means no expiry
}

// SnapshotOption configures how snapshots are written.
type SnapshotOption func(*snapshotOptions)

type snapshotOptions struct {
	codec       codec.Codec
	compression persistence.Compression
}

// WithSnapshotCodec selects the codec used to encode entries, defaulting
// to codec.Default. The snapshot records the codec name in its header,
// so loading picks the matching codec automatically.
func WithSnapshotCodec(c codec.Codec) SnapshotOption {
	return func(o *snapshotOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithSnapshotCompression selects the payload compression, defaulting to
// LZ4. Use persistence.CompressionZSTD for a better ratio at more CPU,
// or persistence.CompressionNone to store the payload verbatim.
func WithSnapshotCompression(comp persistence.Compression) SnapshotOption {
	return func(o *snapshotOptions) {
		o.compression = comp
	}
}

func applySnapshotOptions(optFns []SnapshotOption) snapshotOptions {
	opts := snapshotOptions{
		codec:       codec.Default,
		compression: persistence.CompressionLZ4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// SaveToWriter writes a snapshot of the cache to w.
//
// The snapshot preserves capacity, eviction order and per-entry expiry.
// Entries already expired at save time are omitted. Concurrent writers
// are not blocked for the encoding, only for the entry collection.
func (c *Cache[K, V]) SaveToWriter(w io.Writer, optFns ...SnapshotOption) error {
	opts := applySnapshotOptions(optFns)

	start := time.Now()
	snap, err := c.buildSnapshot(opts)
	if err == nil {
		err = persistence.Write(w, snap, opts.compression)
	}
	c.metrics.RecordSnapshot(time.Since(start), err)

	return translateError(err)
}

// SaveToFile writes a snapshot of the cache to filename. The write is
// atomic: a crash mid-save leaves the previous snapshot intact.
func (c *Cache[K, V]) SaveToFile(filename string, optFns ...SnapshotOption) error {
	opts := applySnapshotOptions(optFns)

	start := time.Now()
	snap, err := c.buildSnapshot(opts)
	if err == nil {
		err = persistence.WriteFile(filename, snap, opts.compression)
	}
	c.metrics.RecordSnapshot(time.Since(start), err)

	entries := 0
	if snap != nil {
		entries = snap.EntryCount
	}
	c.logger.LogSnapshot(context.Background(), filename, entries, err)

	return translateError(err)
}

// buildSnapshot collects live entries oldest-first under the lock and
// encodes them outside it.
func (c *Cache[K, V]) buildSnapshot(opts snapshotOptions) (*persistence.Snapshot, error) {
	c.mu.Lock()
	now := c.clock()
	entries := make([]snapshotEntry[K, V], 0, c.evictList.Len())
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && ent.expired(now) {
			continue
		}
		se := snapshotEntry[K, V]{Key: ent.key, Value: ent.value}
		if !ent.expiresAt.IsZero() {
			se.ExpiresAt = ent.expiresAt.UnixNano()
		}
		entries = append(entries, se)
	}
	capacity := c.capacity
	c.mu.Unlock()

	payload, err := opts.codec.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return &persistence.Snapshot{
		Capacity:   capacity,
		EntryCount: len(entries),
		CodecName:  opts.codec.Name(),
		Payload:    payload,
	}, nil
}

// NewFromReader restores a cache from a snapshot stream.
//
// The capacity comes from the snapshot header; optFns configure
// everything else (TTL defaults, janitor, metrics, logging). Entries
// whose deadline already passed are dropped during replay. Use Resize
// afterwards to load into a different capacity.
func NewFromReader[K comparable, V any](r io.Reader, optFns ...Option) (*Cache[K, V], error) {
	snap, err := persistence.Read(r)
	if err != nil {
		return nil, translateError(err)
	}
	return restoreSnapshot[K, V](snap, optFns)
}

// NewFromFile restores a cache from a snapshot file.
func NewFromFile[K comparable, V any](filename string, optFns ...Option) (*Cache[K, V], error) {
	snap, err := persistence.ReadFile(filename)
	if err != nil {
		return nil, translateError(err)
	}
	return restoreSnapshot[K, V](snap, optFns)
}

// restoreSnapshot decodes the payload and replays it oldest-first, which
// reconstructs the original eviction order.
func restoreSnapshot[K comparable, V any](snap *persistence.Snapshot, optFns []Option) (*Cache[K, V], error) {
	cdc, ok := codec.ByName(snap.CodecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrSnapshotCorrupt, snap.CodecName)
	}

	var entries []snapshotEntry[K, V]
	if err := cdc.Unmarshal(snap.Payload, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode entries: %w", ErrSnapshotCorrupt, err)
	}

	c, err := New[K, V](snap.Capacity, optFns...)
	if err != nil {
		return nil, err
	}

	var (
		loaded, expired int
		evs             []evicted[K, V]
	)

	c.mu.Lock()
	now := c.clock()
	for _, se := range entries {
		var expiresAt time.Time
		if se.ExpiresAt != 0 {
			expiresAt = time.Unix(0, se.ExpiresAt)
			if now.After(expiresAt) {
				expired++
				continue
			}
		}
		_, _, e := c.putExpiresAt(se.Key, se.Value, expiresAt)
		evs = append(evs, e...)
		loaded++
	}
	c.mu.Unlock()

	c.afterEvict(evs)
	c.logger.LogRestore(context.Background(), loaded, expired, nil)

	return c, nil
}

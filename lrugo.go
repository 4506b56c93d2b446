package lrugo

import (
	"container/list"
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
)

// EvictReason describes why an entry left the cache.
type EvictReason uint8

const (
	// ReasonCapacity marks the least-recently-used entry displaced by an insert.
	ReasonCapacity EvictReason = iota + 1
	// ReasonResize marks entries dropped by a capacity reduction.
	ReasonResize
	// ReasonExpired marks entries removed past their TTL.
	ReasonExpired
	// ReasonPurged marks entries dropped by Purge.
	ReasonPurged
)

// String returns a human-readable reason name.
func (r EvictReason) String() string {
	switch r {
	case ReasonCapacity:
		return "capacity"
	case ReasonResize:
		return "resize"
	case ReasonExpired:
		return "expired"
	case ReasonPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// EvictCallback is invoked for entries the cache drops on its own
// (capacity pressure, resize, expiry, purge). It is not invoked for
// explicit Remove or RemoveOldest calls, where the caller already
// holds the value. The callback runs outside the cache lock.
type EvictCallback[K comparable, V any] func(key K, value V, reason EvictReason)

type entry[K comparable, V any] struct {
	key   K
	value V
	// expiresAt is zero for entries without expiry.
	expiresAt time.Time
}

type evicted[K comparable, V any] struct {
	key    K
	value  V
	reason EvictReason
}

// Cache is a bounded key-value cache with least-recently-used eviction.
//
// The cache holds at most Cap entries, ordered by recency of use. A lookup
// (Get, GetOrSet) or an insert of a key marks it most recently used. When an
// insert pushes the cache past its capacity, the least-recently-used entry is
// evicted. Updating an existing key never evicts.
//
// All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	items     map[K]*list.Element
	evictList *list.List // Front = most recent, Back = least recent

	defaultTTL time.Duration
	ttlEnabled bool
	clock      func() time.Time

	onEvict EvictCallback[K, V]
	metrics MetricsCollector
	logger  *Logger

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// New creates an empty cache that can hold at most capacity entries.
// Returns ErrInvalidCapacity when capacity is less than one.
func New[K comparable, V any](capacity int, optFns ...Option) (*Cache[K, V], error) {
	return NewWithEvict[K, V](capacity, nil, optFns...)
}

// NewWithEvict creates a cache that invokes onEvict for every entry it drops
// on its own. See EvictCallback for the exact contract.
func NewWithEvict[K comparable, V any](capacity int, onEvict EvictCallback[K, V], optFns ...Option) (*Cache[K, V], error) {
	return newCache[K, V](capacity, applyOptions(optFns), onEvict)
}

func newCache[K comparable, V any](capacity int, o options, onEvict EvictCallback[K, V]) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	c := &Cache[K, V]{
		capacity:   capacity,
		items:      make(map[K]*list.Element),
		evictList:  list.New(),
		defaultTTL: o.defaultTTL,
		ttlEnabled: o.defaultTTL > 0,
		clock:      o.clock,
		onEvict:    onEvict,
		metrics:    o.metricsCollector,
		logger:     o.logger,
	}

	if o.janitorInterval > 0 {
		c.ttlEnabled = true
		c.janitorStop = make(chan struct{})
		c.janitorDone = make(chan struct{})
		go c.janitor(o.janitorInterval)
	}

	return c, nil
}

// Put inserts a key-value pair into the cache and marks it most recently
// used. If the key already existed, its value is replaced and the old value
// returned; the entry count does not change and nothing is evicted. If the
// insert exceeded the capacity, the least-recently-used entry is evicted.
//
// When the cache has a default TTL, the entry's expiry is re-armed from it.
func (c *Cache[K, V]) Put(key K, value V) (old V, replaced bool) {
	return c.PutTTL(key, value, c.defaultTTL)
}

// PutTTL inserts a key-value pair with an explicit time-to-live, overriding
// the cache default. A non-positive ttl means the entry never expires.
func (c *Cache[K, V]) PutTTL(key K, value V, ttl time.Duration) (old V, replaced bool) {
	var evs []evicted[K, V]

	c.mu.Lock()
	old, replaced, evs = c.put(key, value, ttl)
	c.mu.Unlock()

	c.afterEvict(evs)
	return old, replaced
}

// put inserts under the lock and returns entries evicted by the insert.
func (c *Cache[K, V]) put(key K, value V, ttl time.Duration) (old V, replaced bool, evs []evicted[K, V]) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock().Add(ttl)
	}
	return c.putExpiresAt(key, value, expiresAt)
}

// putExpiresAt inserts with an absolute deadline under the lock; a zero
// deadline means the entry never expires. Snapshot restore calls this
// directly so original deadlines survive a save/load round trip.
func (c *Cache[K, V]) putExpiresAt(key K, value V, expiresAt time.Time) (old V, replaced bool, evs []evicted[K, V]) {
	if !expiresAt.IsZero() {
		c.ttlEnabled = true
	}

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		old = ent.value
		ent.value = value
		ent.expiresAt = expiresAt
		c.evictList.MoveToFront(el)
		return old, true, nil
	}

	el := c.evictList.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	// Evict after the insert, so updates at full capacity never evict.
	for c.evictList.Len() > c.capacity {
		evs = append(evs, c.removeElement(c.evictList.Back(), ReasonCapacity))
	}
	return old, false, evs
}

// Get returns the value for key and marks it most recently used.
// Expired entries are treated as absent and reclaimed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.metrics.RecordMiss()
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.ttlEnabled && c.isExpired(ent) {
		ev := c.removeElement(el, ReasonExpired)
		c.mu.Unlock()
		c.metrics.RecordMiss()
		c.afterEvict([]evicted[K, V]{ev})
		return zero, false
	}
	c.evictList.MoveToFront(el)
	value := ent.value
	c.mu.Unlock()

	c.metrics.RecordHit()
	return value, true
}

// Peek returns the value for key without refreshing its recency.
// Expired entries are treated as absent and reclaimed.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.metrics.RecordMiss()
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.ttlEnabled && c.isExpired(ent) {
		ev := c.removeElement(el, ReasonExpired)
		c.mu.Unlock()
		c.metrics.RecordMiss()
		c.afterEvict([]evicted[K, V]{ev})
		return zero, false
	}
	value := ent.value
	c.mu.Unlock()

	c.metrics.RecordHit()
	return value, true
}

// Contains reports whether key is present, without refreshing its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.Peek(key)
	return ok
}

// GetOrSet returns the existing value for key if present, marking it most
// recently used. Otherwise it inserts value and returns it. loaded is true
// when the value was already in the cache.
func (c *Cache[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	return c.getOrSet(key, value, true)
}

// getOrSet implements GetOrSet; record suppresses hit/miss accounting when
// the caller already recorded the lookup.
func (c *Cache[K, V]) getOrSet(key K, value V, record bool) (actual V, loaded bool) {
	var evs []evicted[K, V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		if !c.ttlEnabled || !c.isExpired(ent) {
			c.evictList.MoveToFront(el)
			actual = ent.value
			c.mu.Unlock()
			if record {
				c.metrics.RecordHit()
			}
			return actual, true
		}
		evs = append(evs, c.removeElement(el, ReasonExpired))
	}
	_, _, put := c.put(key, value, c.defaultTTL)
	evs = append(evs, put...)
	c.mu.Unlock()

	if record {
		c.metrics.RecordMiss()
	}
	c.afterEvict(evs)
	return value, false
}

// GetOrSetFunc is like GetOrSet but computes the value only on a miss.
//
// valueFn runs without the cache lock held, so other operations proceed
// concurrently. If another writer inserts the key first, that value wins and
// the computed one is discarded. Use LoadingCache for single-flight loading.
func (c *Cache[K, V]) GetOrSetFunc(key K, valueFn func() V) (actual V, loaded bool) {
	if v, ok := c.Get(key); ok {
		return v, true
	}
	// Get already recorded the miss for this lookup.
	return c.getOrSet(key, valueFn(), false)
}

// Remove removes the given key from the cache and returns its value.
// The eviction callback is not invoked.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ev := c.removeElement(el, 0)
	return ev.value, true
}

// RemoveOldest removes and returns the least-recently-used live entry.
// Expired entries encountered on the way out are reclaimed, not returned.
func (c *Cache[K, V]) RemoveOldest() (K, V, bool) {
	var (
		zeroK K
		zeroV V
		evs   []evicted[K, V]
	)

	c.mu.Lock()
	for {
		el := c.evictList.Back()
		if el == nil {
			c.mu.Unlock()
			c.afterEvict(evs)
			return zeroK, zeroV, false
		}
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && c.isExpired(ent) {
			evs = append(evs, c.removeElement(el, ReasonExpired))
			continue
		}
		ev := c.removeElement(el, 0)
		c.mu.Unlock()
		c.afterEvict(evs)
		return ev.key, ev.value, true
	}
}

// Oldest returns the least-recently-used live entry without removing it or
// refreshing its recency. Expired entries encountered are reclaimed.
func (c *Cache[K, V]) Oldest() (K, V, bool) {
	var (
		zeroK K
		zeroV V
		evs   []evicted[K, V]
	)

	c.mu.Lock()
	for {
		el := c.evictList.Back()
		if el == nil {
			c.mu.Unlock()
			c.afterEvict(evs)
			return zeroK, zeroV, false
		}
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && c.isExpired(ent) {
			evs = append(evs, c.removeElement(el, ReasonExpired))
			continue
		}
		c.mu.Unlock()
		c.afterEvict(evs)
		return ent.key, ent.value, true
	}
}

// Keys returns the keys of all live entries, ordered oldest to newest.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.evictList.Len())
	now := c.now()
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && ent.expired(now) {
			continue
		}
		keys = append(keys, ent.key)
	}
	return keys
}

// Values returns the values of all live entries, ordered oldest to newest.
func (c *Cache[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]V, 0, c.evictList.Len())
	now := c.now()
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && ent.expired(now) {
			continue
		}
		values = append(values, ent.value)
	}
	return values
}

// All returns an iterator over a point-in-time snapshot of the cache,
// ordered oldest to newest. Iteration does not refresh recency.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	c.mu.Lock()
	snap := make([]evicted[K, V], 0, c.evictList.Len())
	now := c.now()
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		if c.ttlEnabled && ent.expired(now) {
			continue
		}
		snap = append(snap, evicted[K, V]{key: ent.key, value: ent.value})
	}
	c.mu.Unlock()

	return func(yield func(K, V) bool) {
		for _, kv := range snap {
			if !yield(kv.key, kv.value) {
				return
			}
		}
	}
}

// PutAll inserts every pair from seq, in order, as if by Put.
func (c *Cache[K, V]) PutAll(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		c.Put(k, v)
	}
}

// Len returns the number of entries in the cache. Entries past their TTL
// that have not been reclaimed yet are included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Cap returns the maximum number of entries the cache can hold.
func (c *Cache[K, V]) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// Resize changes the capacity, evicting least-recently-used entries as
// needed. It returns the number of evicted entries.
func (c *Cache[K, V]) Resize(capacity int) (int, error) {
	if capacity < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	var evs []evicted[K, V]

	c.mu.Lock()
	oldCapacity := c.capacity
	for c.evictList.Len() > capacity {
		evs = append(evs, c.removeElement(c.evictList.Back(), ReasonResize))
	}
	c.capacity = capacity
	c.mu.Unlock()

	c.afterEvict(evs)
	c.logger.LogResize(context.Background(), oldCapacity, capacity, len(evs))
	return len(evs), nil
}

// Purge removes all entries from the cache.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	evs := make([]evicted[K, V], 0, c.evictList.Len())
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		evs = append(evs, evicted[K, V]{key: ent.key, value: ent.value, reason: ReasonPurged})
	}
	c.items = make(map[K]*list.Element)
	c.evictList.Init()
	c.mu.Unlock()

	c.afterEvict(evs)
}

// RemoveExpired reclaims all expired entries and returns how many were removed.
func (c *Cache[K, V]) RemoveExpired() int {
	var evs []evicted[K, V]

	c.mu.Lock()
	if c.ttlEnabled {
		now := c.now()
		var expired []*list.Element
		for el := c.evictList.Back(); el != nil; el = el.Prev() {
			if el.Value.(*entry[K, V]).expired(now) {
				expired = append(expired, el)
			}
		}
		for _, el := range expired {
			evs = append(evs, c.removeElement(el, ReasonExpired))
		}
	}
	c.mu.Unlock()

	c.afterEvict(evs)
	return len(evs)
}

// Clone returns a copy of the cache with the same capacity, entries and
// recency order. The clone shares the configured collector and logger but
// runs no janitor; callbacks are not carried over.
func (c *Cache[K, V]) Clone() *Cache[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := &Cache[K, V]{
		capacity:   c.capacity,
		items:      make(map[K]*list.Element, len(c.items)),
		evictList:  list.New(),
		defaultTTL: c.defaultTTL,
		ttlEnabled: c.ttlEnabled,
		clock:      c.clock,
		metrics:    c.metrics,
		logger:     c.logger,
	}
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*entry[K, V])
		cloned := clone.evictList.PushFront(&entry[K, V]{key: ent.key, value: ent.value, expiresAt: ent.expiresAt})
		clone.items[ent.key] = cloned
	}
	return clone
}

// Stats returns a metrics snapshot when the cache was configured with a
// BasicMetricsCollector, and a zero Stats otherwise.
func (c *Cache[K, V]) Stats() Stats {
	if b, ok := c.metrics.(*BasicMetricsCollector); ok {
		return b.GetStats()
	}
	return Stats{}
}

// Close stops the background janitor, if any. The cache remains usable.
// Close is idempotent.
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		if c.janitorStop != nil {
			close(c.janitorStop)
			<-c.janitorDone
		}
	})
	return nil
}

// String renders the cache contents most recent first, in the form
// {k3: v3, k2: v2, k1: v1}. Expired entries are included until reclaimed.
func (c *Cache[K, V]) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	sb.WriteByte('{')
	for el := c.evictList.Front(); el != nil; el = el.Next() {
		if el != c.evictList.Front() {
			sb.WriteString(", ")
		}
		ent := el.Value.(*entry[K, V])
		fmt.Fprintf(&sb, "%v: %v", ent.key, ent.value)
	}
	sb.WriteByte('}')
	return sb.String()
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	defer close(c.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			removed := c.RemoveExpired()
			c.logger.LogSweep(context.Background(), removed)
		}
	}
}

func (c *Cache[K, V]) now() time.Time {
	if !c.ttlEnabled {
		return time.Time{}
	}
	return c.clock()
}

func (c *Cache[K, V]) isExpired(ent *entry[K, V]) bool {
	return ent.expired(c.clock())
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// removeElement unlinks an element under the lock. A zero reason marks an
// explicit removal, which afterEvict skips.
func (c *Cache[K, V]) removeElement(el *list.Element, reason EvictReason) evicted[K, V] {
	c.evictList.Remove(el)
	ent := el.Value.(*entry[K, V])
	delete(c.items, ent.key)
	return evicted[K, V]{key: ent.key, value: ent.value, reason: reason}
}

// afterEvict runs metrics and callbacks outside the cache lock.
func (c *Cache[K, V]) afterEvict(evs []evicted[K, V]) {
	for _, ev := range evs {
		if ev.reason == 0 {
			continue
		}
		c.metrics.RecordEviction(ev.reason)
		if c.onEvict != nil {
			c.onEvict(ev.key, ev.value, ev.reason)
		}
	}
}

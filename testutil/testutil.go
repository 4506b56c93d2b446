package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand     *rand.Rand
	seed     int64
	mu       sync.Mutex
	zipfCDFs map[zipfKey][]float64
}

type zipfKey struct {
	n int
	s float64
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand:     rand.New(rand.NewSource(seed)),
		seed:     seed,
		zipfCDFs: make(map[zipfKey][]float64),
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Bytes returns n pseudo-random bytes.
// Locks only once per call (preferred over calling Uint64 in a loop).
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, n)
	r.rand.Read(b) //nolint:errcheck // rand.Read never fails
	return b
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
// This is how real-world access patterns are distributed (power law).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Sample from uniform and invert the cumulative mass table.
	cdf := r.zipfCDFLocked(n, s)
	u := r.rand.Float64() * cdf[n-1]
	return sort.SearchFloat64s(cdf, u)
}

// zipfCDFLocked returns the cumulative mass table for (n, s), computing it
// on first use. A draw is then one binary search instead of an O(n) scan,
// which matters once traces run to millions of accesses over large
// keyspaces. The table depends only on (n, s), so Reset does not clear it.
func (r *RNG) zipfCDFLocked(n int, s float64) []float64 {
	key := zipfKey{n: n, s: s}
	if cdf, ok := r.zipfCDFs[key]; ok {
		return cdf
	}

	cdf := make([]float64, n)
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		cdf[k-1] = cumulative
	}
	r.zipfCDFs[key] = cdf
	return cdf
}

// ZipfTrace generates length key accesses over a keyspace with Zipfian
// distribution. With s=1.5, ~20% of the keys receive ~80% of the accesses.
func (r *RNG) ZipfTrace(length, keyspace int, s float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	trace := make([]int, length)
	for i := range length {
		trace[i] = r.zipfLocked(keyspace, s)
	}

	return trace
}

// HotColdTrace generates key accesses where a hot fraction of the keyspace
// receives most of the traffic. hotFraction is the share of keys that are
// hot (0.1 = 10%), hotProbability the share of accesses that go to them
// (0.9 = 90%). Cold keys are drawn uniformly from the rest.
func (r *RNG) HotColdTrace(length, keyspace int, hotFraction, hotProbability float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	hotKeys := int(float64(keyspace) * hotFraction)
	if hotKeys < 1 {
		hotKeys = 1
	}
	if hotKeys >= keyspace {
		hotKeys = keyspace - 1
	}

	trace := make([]int, length)
	for i := range length {
		if r.rand.Float64() < hotProbability {
			trace[i] = r.rand.Intn(hotKeys)
		} else {
			trace[i] = hotKeys + r.rand.Intn(keyspace-hotKeys)
		}
	}

	return trace
}

// ScanTrace generates a sequential scan over the keyspace, repeated until
// length accesses are produced. A scan over more keys than a cache holds
// is the classic worst case for recency-based eviction: every access
// misses.
func ScanTrace(length, keyspace int) []int {
	trace := make([]int, length)
	for i := range length {
		trace[i] = i % keyspace
	}
	return trace
}

// MeasureHitRate replays a trace against probe and returns the fraction
// of accesses that hit. probe reports whether the key was present; on a
// miss it is expected to admit the key.
func MeasureHitRate(trace []int, probe func(key int) bool) float64 {
	if len(trace) == 0 {
		return 0
	}

	hits := 0
	for _, key := range trace {
		if probe(key) {
			hits++
		}
	}

	return float64(hits) / float64(len(trace))
}

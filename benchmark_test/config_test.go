package benchmark_test

import (
	"fmt"
	"testing"

	"github.com/hupe1980/lrugo"
	"github.com/hupe1980/lrugo/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard capacities used across benchmarks for consistency.
const (
	capSmall  = 1_000   // Fast CI benchmarks
	capMedium = 10_000  // Default
	capLarge  = 100_000 // Production-scale
)

// Standard trace lengths.
const (
	traceShort = 100_000
	traceLong  = 1_000_000
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// ============================================================================
// Benchmark Helpers
// ============================================================================

// NewBenchCache creates a cache for benchmark isolation. Metrics stay off so
// timings measure the data structure, not the collector.
func NewBenchCache(b *testing.B, capacity int, optFns ...lrugo.Option) *lrugo.Cache[string, int] {
	b.Helper()

	c, err := lrugo.New[string, int](capacity, optFns...)
	if err != nil {
		b.Fatalf("failed to create cache: %v", err)
	}

	return c
}

// NewBenchSharded creates a sharded cache for contention benchmarks.
func NewBenchSharded(b *testing.B, capacity int, optFns ...lrugo.Option) *lrugo.ShardedCache[string, int] {
	b.Helper()

	c, err := lrugo.NewSharded[string, int](capacity, optFns...)
	if err != nil {
		b.Fatalf("failed to create sharded cache: %v", err)
	}

	return c
}

// MakeKeys generates n distinct string keys. Generating them outside the
// timed region keeps fmt.Sprintf out of the measurement.
func MakeKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%08d", i)
	}

	return keys
}

// FillCache puts keys[0:capacity] so hit benchmarks start warm.
func FillCache(b *testing.B, c *lrugo.Cache[string, int], keys []string) {
	b.Helper()

	for i, key := range keys {
		c.Put(key, i)
	}
}

// MakeZipfTrace pre-generates a Zipfian access trace with the shared seed.
func MakeZipfTrace(length, keyspace int, s float64) []int {
	rng := testutil.NewRNG(benchSeed)
	return rng.ZipfTrace(length, keyspace, s)
}

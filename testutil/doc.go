// Package testutil provides testing utilities for lrugo.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe RNG and generators for the
// access patterns cache tests care about.
//
// # Access Traces
//
//	rng := testutil.NewRNG(seed)
//	trace := rng.ZipfTrace(100_000, 10_000, 1.2)   // power-law accesses
//	trace = rng.HotColdTrace(100_000, 10_000, 0.1, 0.9)
//	trace = testutil.ScanTrace(100_000, 10_000)    // LRU worst case
//
// # Hit-Rate Measurement
//
//	rate := testutil.MeasureHitRate(trace, func(key int) bool {
//	    if _, ok := c.Get(key); ok {
//	        return true
//	    }
//	    c.Put(key, load(key))
//	    return false
//	})
package testutil

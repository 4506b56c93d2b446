// Package resource implements a shared budget controller for cache tiers.
//
// The Controller provides centralized management of three resource types:
//
//   - Memory: track and cap the bytes held by in-memory caches
//   - Concurrency: limit background worker goroutines (disk cache writes, refreshes)
//   - IO: rate-limit background IO so it does not starve foreground lookups
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. TryAcquireMemory is the fail-fast form used on cache
// fill paths: if the reservation does not fit, the value is simply not
// cached. AcquireMemory blocks until the reservation fits or ctx is done.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB across all tiers
//	})
//
//	if !rc.TryAcquireMemory(int64(len(block))) {
//	    return // over budget, skip caching
//	}
//	defer rc.ReleaseMemory(int64(len(block)))
//
// # Background Worker Limits
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # IO Rate Limiting
//
// A token bucket paces background IO. Acquire directly, or wrap a
// reader/writer so every transfer draws from the budget:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully and admit everything.
// Callers can thread an optional controller through without nil checks.
package resource

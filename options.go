package lrugo

import (
	"log/slog"
	"time"
)

const defaultShardCount = 16

type options struct {
	defaultTTL       time.Duration
	janitorInterval  time.Duration
	clock            func() time.Time
	shards           int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures cache constructor behavior.
//
// Options are shared across New, NewSharded and NewLoading; options that do
// not apply to a constructor are ignored by it (e.g. WithShards on New).
type Option func(*options)

// WithTTL configures a default time-to-live applied by Put. Entries older
// than their TTL are treated as absent and removed lazily on access.
//
// A zero or negative ttl leaves entries without expiry (the default).
// Use PutTTL for per-entry overrides.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = ttl
	}
}

// WithJanitor starts a background goroutine that sweeps expired entries
// every interval. The janitor is stopped by Close.
//
// Without a janitor, expired entries are only reclaimed when touched by a
// lookup or by an explicit RemoveExpired call.
func WithJanitor(interval time.Duration) Option {
	return func(o *options) {
		o.janitorInterval = interval
	}
}

// WithClock overrides the time source used for expiry decisions.
// Intended for tests; pass nil to keep the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock == nil {
			clock = time.Now
		}
		o.clock = clock
	}
}

// WithShards configures the number of shards for NewSharded.
// Must be a power of two. Defaults to 16.
//
// Sharding eliminates the global lock bottleneck by partitioning keys across
// independent caches, each with its own lock. Trade-off: operations that need
// a global recency order (RemoveOldest, Keys, Resize) are unavailable on a
// sharded cache.
func WithShards(shards int) Option {
	return func(o *options) {
		o.shards = shards
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &lrugo.BasicMetricsCollector{}
//	c, _ := lrugo.New[string, int](128, lrugo.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Hit ratio: %.2f\n", stats.HitRatio())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := lrugo.NewJSONLogger(slog.LevelInfo)
//	c, _ := lrugo.New[string, int](128, lrugo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		clock:            time.Now,
		shards:           defaultShardCount,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

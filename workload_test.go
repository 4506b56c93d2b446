package lrugo_test

import (
	"testing"

	"github.com/hupe1980/lrugo"
	"github.com/hupe1980/lrugo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replayTrace(t *testing.T, c *lrugo.Cache[int, int], trace []int) float64 {
	t.Helper()
	return testutil.MeasureHitRate(trace, func(key int) bool {
		if _, ok := c.Get(key); ok {
			return true
		}
		c.Put(key, key)
		return false
	})
}

func TestCacheZipfianWorkload(t *testing.T) {
	metrics := &lrugo.BasicMetricsCollector{}
	c, err := lrugo.New[int, int](100, lrugo.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer c.Close()

	rng := testutil.NewRNG(42)
	trace := rng.ZipfTrace(20000, 1000, 1.2)

	rate := replayTrace(t, c, trace)
	assert.Greater(t, rate, 0.6, "a cache holding 10%% of the keyspace should absorb a power-law workload")

	stats := c.Stats()
	assert.Equal(t, int64(len(trace)), stats.Hits+stats.Misses)
	assert.Greater(t, stats.EvictedCapacity, int64(0))
}

func TestCacheHotColdWorkload(t *testing.T) {
	c, err := lrugo.New[int, int](100)
	require.NoError(t, err)
	defer c.Close()

	rng := testutil.NewRNG(42)
	trace := rng.HotColdTrace(20000, 1000, 0.1, 0.9)

	rate := replayTrace(t, c, trace)
	assert.Greater(t, rate, 0.7, "the hot set fits the cache exactly")
}

func TestCacheScanWorkload(t *testing.T) {
	c, err := lrugo.New[int, int](100)
	require.NoError(t, err)
	defer c.Close()

	// Scanning twice the capacity evicts every key before it repeats.
	trace := testutil.ScanTrace(2000, 200)

	rate := replayTrace(t, c, trace)
	assert.Zero(t, rate)
}

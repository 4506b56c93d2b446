package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	t1 := rng.ZipfTrace(100, 50, 1.2)

	rng.Reset()
	t2 := rng.ZipfTrace(100, 50, 1.2)

	assert.Equal(t, t1, t2)
}

func TestBytes(t *testing.T) {
	rng := NewRNG(4711)
	b1 := rng.Bytes(64)
	assert.Len(t, b1, 64)

	rng.Reset()
	b2 := rng.Bytes(64)
	assert.Equal(t, b1, b2)
}

func TestZipfTrace(t *testing.T) {
	rng := NewRNG(42)
	keyspace := 100
	trace := rng.ZipfTrace(10000, keyspace, 1.2)

	assert.Len(t, trace, 10000)

	// All keys in range, and the head of the keyspace dominates.
	counts := make(map[int]int)
	for _, k := range trace {
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, keyspace)
		counts[k]++
	}

	headCount := 0
	for k := 0; k < keyspace/5; k++ {
		headCount += counts[k]
	}
	headRatio := float64(headCount) / float64(len(trace))
	assert.Greater(t, headRatio, 0.6, "top 20%% of keys should receive most accesses")
}

func TestHotColdTrace(t *testing.T) {
	rng := NewRNG(42)
	keyspace := 1000
	trace := rng.HotColdTrace(10000, keyspace, 0.1, 0.9)

	assert.Len(t, trace, 10000)

	hotCount := 0
	for _, k := range trace {
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, keyspace)
		if k < keyspace/10 {
			hotCount++
		}
	}

	hotRatio := float64(hotCount) / float64(len(trace))
	assert.InDelta(t, 0.9, hotRatio, 0.05, "hot keys should receive ~90%% of accesses")
}

func TestScanTrace(t *testing.T) {
	trace := ScanTrace(10, 4)
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}, trace)
}

func TestMeasureHitRate(t *testing.T) {
	trace := []int{1, 2, 1, 3, 1, 2}

	seen := make(map[int]bool)
	rate := MeasureHitRate(trace, func(key int) bool {
		if seen[key] {
			return true
		}
		seen[key] = true
		return false
	})

	// 1, 2, 3 miss once each; the other three accesses hit.
	assert.InDelta(t, 0.5, rate, 1e-9)

	assert.Zero(t, MeasureHitRate(nil, func(int) bool { return true }))
}

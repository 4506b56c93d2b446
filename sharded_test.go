package lrugo

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSharded(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		s, err := NewSharded[string, int](256)
		require.NoError(t, err)
		assert.Equal(t, 16, s.Shards())
		assert.Equal(t, 256, s.Cap())
		assert.Equal(t, 0, s.Len())
	})

	t.Run("CustomShardCount", func(t *testing.T) {
		s, err := NewSharded[string, int](256, WithShards(4))
		require.NoError(t, err)
		assert.Equal(t, 4, s.Shards())
		assert.Equal(t, 256, s.Cap())
	})

	t.Run("UnevenCapacitySplit", func(t *testing.T) {
		// 10 across 4 shards: the remainder lands on the first shards.
		s, err := NewSharded[string, int](10, WithShards(4))
		require.NoError(t, err)
		assert.Equal(t, 10, s.Cap())
	})

	t.Run("TinyCapacityRoundsUp", func(t *testing.T) {
		// Every shard holds at least one entry, so the effective
		// capacity can exceed a request smaller than the shard count.
		s, err := NewSharded[string, int](2, WithShards(16))
		require.NoError(t, err)
		assert.Equal(t, 16, s.Cap())
	})

	t.Run("InvalidCapacity", func(t *testing.T) {
		_, err := NewSharded[string, int](0)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("NonPowerOfTwoShards", func(t *testing.T) {
		_, err := NewSharded[string, int](64, WithShards(6))
		require.Error(t, err)

		var esc *ErrInvalidShardCount
		require.ErrorAs(t, err, &esc)
		assert.Equal(t, 6, esc.Shards)
	})

	t.Run("NegativeShards", func(t *testing.T) {
		_, err := NewSharded[string, int](64, WithShards(-2))
		var esc *ErrInvalidShardCount
		require.ErrorAs(t, err, &esc)
	})
}

func TestShardedCache(t *testing.T) {
	t.Run("PutAndGet", func(t *testing.T) {
		s, err := NewSharded[string, int](1024)
		require.NoError(t, err)

		for i := range 500 {
			s.Put(fmt.Sprintf("key-%d", i), i)
		}
		assert.Equal(t, 500, s.Len())

		for i := range 500 {
			v, ok := s.Get(fmt.Sprintf("key-%d", i))
			require.True(t, ok, "key-%d missing", i)
			assert.Equal(t, i, v)
		}

		_, ok := s.Get("absent")
		assert.False(t, ok)
	})

	t.Run("PutReturnsOldValue", func(t *testing.T) {
		s, err := NewSharded[string, int](64)
		require.NoError(t, err)

		_, replaced := s.Put("a", 1)
		assert.False(t, replaced)

		old, replaced := s.Put("a", 2)
		assert.True(t, replaced)
		assert.Equal(t, 1, old)
	})

	t.Run("PeekAndContains", func(t *testing.T) {
		s, err := NewSharded[string, int](64)
		require.NoError(t, err)

		s.Put("a", 1)

		v, ok := s.Peek("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.True(t, s.Contains("a"))
		assert.False(t, s.Contains("b"))
	})

	t.Run("Remove", func(t *testing.T) {
		s, err := NewSharded[string, int](64)
		require.NoError(t, err)

		s.Put("a", 1)

		v, ok := s.Remove("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 0, s.Len())

		_, ok = s.Remove("a")
		assert.False(t, ok)
	})

	t.Run("GetOrSet", func(t *testing.T) {
		s, err := NewSharded[string, int](64)
		require.NoError(t, err)

		actual, loaded := s.GetOrSet("a", 1)
		assert.False(t, loaded)
		assert.Equal(t, 1, actual)

		actual, loaded = s.GetOrSet("a", 99)
		assert.True(t, loaded)
		assert.Equal(t, 1, actual)
	})

	t.Run("GetOrSetFunc", func(t *testing.T) {
		s, err := NewSharded[string, int](64)
		require.NoError(t, err)

		calls := 0
		actual, loaded := s.GetOrSetFunc("a", func() int {
			calls++
			return 7
		})
		assert.False(t, loaded)
		assert.Equal(t, 7, actual)

		_, loaded = s.GetOrSetFunc("a", func() int {
			calls++
			return 8
		})
		assert.True(t, loaded)
		assert.Equal(t, 1, calls)
	})

	t.Run("EvictionStaysWithinCapacity", func(t *testing.T) {
		s, err := NewSharded[string, int](64, WithShards(8))
		require.NoError(t, err)

		for i := range 10_000 {
			s.Put(fmt.Sprintf("key-%d", i), i)
		}
		assert.LessOrEqual(t, s.Len(), s.Cap())
		assert.Positive(t, s.Len())
	})

	t.Run("Purge", func(t *testing.T) {
		s, err := NewSharded[string, int](256)
		require.NoError(t, err)

		for i := range 100 {
			s.Put(fmt.Sprintf("key-%d", i), i)
		}
		s.Purge()
		assert.Equal(t, 0, s.Len())
	})
}

func TestShardedCacheEvictCallback(t *testing.T) {
	evictions := 0
	s, err := NewShardedWithEvict[string, int](32, func(string, int, EvictReason) {
		evictions++
	}, WithShards(8))
	require.NoError(t, err)

	const inserts = 500
	for i := range inserts {
		s.Put(fmt.Sprintf("key-%d", i), i)
	}

	assert.Equal(t, inserts-s.Len(), evictions, "every displaced entry reports exactly once")
}

func TestShardedCacheTTL(t *testing.T) {
	clk := newFakeClock()
	s, err := NewSharded[string, int](64, WithTTL(time.Minute), WithClock(clk.Now))
	require.NoError(t, err)

	for i := range 20 {
		s.Put(fmt.Sprintf("key-%d", i), i)
	}
	s.PutTTL("pinned", 1, time.Hour)

	clk.Advance(2 * time.Minute)

	removed := s.RemoveExpired()
	assert.Equal(t, 20, removed)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("pinned"))
}

func TestShardedCacheJanitor(t *testing.T) {
	s, err := NewSharded[string, int](64,
		WithTTL(20*time.Millisecond),
		WithJanitor(5*time.Millisecond),
	)
	require.NoError(t, err)
	defer s.Close()

	for i := range 20 {
		s.Put(fmt.Sprintf("key-%d", i), i)
	}

	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestShardedCacheStats(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s, err := NewSharded[string, int](64, WithMetricsCollector(metrics))
	require.NoError(t, err)

	s.Put("a", 1)
	_, _ = s.Get("a")
	_, _ = s.Get("b")

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestShardedCacheClose(t *testing.T) {
	s, err := NewSharded[string, int](64, WithTTL(time.Minute), WithJanitor(time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")
}

func TestShardedCacheConcurrent(t *testing.T) {
	s, err := NewSharded[int, int](1024, WithShards(16))
	require.NoError(t, err)

	const goroutines = 32
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := range goroutines {
		go func(id int) {
			defer wg.Done()
			for i := range opsPerGoroutine {
				key := id*opsPerGoroutine + i
				s.Put(key, i)
				s.Get(key)
				if i%7 == 0 {
					s.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Len(), s.Cap())
}

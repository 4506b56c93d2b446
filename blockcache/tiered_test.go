package blockcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTiered(t *testing.T, memoryBytes int64) *Tiered {
	t.Helper()

	c, err := NewTiered(TieredConfig{
		MemoryBytes: memoryBytes,
		Disk: DiskConfig{
			RootDir:             t.TempDir(),
			MaxSizeBytes:        1 << 20,
			MaxConcurrentWrites: 1024,
		},
	})
	require.NoError(t, err)
	return c
}

func TestTiered_MemoryHit(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	key := Key{Kind: KindData, Path: "seg", Offset: 0}
	c.Set(key, []byte("hot"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hot", string(got))

	_, ok = c.Get(Key{Kind: KindData, Path: "seg", Offset: 4096})
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestTiered_DiskHitPromotes(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	key := Key{Kind: KindData, Path: "seg", Offset: 0}

	// Plant the block in the disk tier only.
	c.disk.Set(key, []byte("cold"))
	require.NoError(t, c.disk.Close()) // waits for the write

	_, ok := c.mem.Get(key)
	require.False(t, ok)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "cold", string(got))
	assert.Equal(t, int64(1), c.Stats().Hits, "a disk hit is a tiered hit")

	// The block is now resident in memory and still on disk.
	_, ok = c.mem.Get(key)
	assert.True(t, ok)
	_, ok = c.disk.Get(key)
	assert.True(t, ok)
}

func TestTiered_EvictionDemotes(t *testing.T) {
	// 64 shards x 100 bytes, overfilled by a factor of eight.
	c := newTestTiered(t, 64*100)

	const numBlocks = 500
	keys := make([]Key, 0, numBlocks)
	for i := range numBlocks {
		key := Key{Kind: KindData, Path: "seg", Offset: uint64(i * 100)}
		keys = append(keys, key)
		c.Set(key, make([]byte, 100))
	}

	memStats := c.mem.Stats()
	assert.GreaterOrEqual(t, memStats.Evictions, int64(400), "most blocks must have been demoted")

	// Once the demotion writes land, every block lives in one tier or the other.
	require.NoError(t, c.disk.Close())
	for _, key := range keys {
		_, inMem := c.mem.Get(key)
		_, onDisk := c.disk.Get(key)
		require.True(t, inMem || onDisk, "block %v lost during demotion", key)
	}
	assert.Greater(t, c.disk.Len(), 0)
}

func TestTiered_Delete(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	key := Key{Kind: KindData, Path: "seg", Offset: 0}

	c.Set(key, []byte("x"))
	c.disk.Set(key, []byte("x"))
	require.NoError(t, c.disk.Close())

	assert.True(t, c.Delete(key))

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.False(t, c.Delete(key))
}

func TestTiered_InvalidatePath(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	for off := uint64(0); off < 3; off++ {
		c.Set(Key{Kind: KindData, Path: "a", Offset: off}, []byte("x"))
		c.Set(Key{Kind: KindData, Path: "b", Offset: off}, []byte("x"))
	}
	// One "a" block also resident on disk.
	c.disk.Set(Key{Kind: KindData, Path: "a", Offset: 0}, []byte("x"))
	require.NoError(t, c.disk.Close())

	assert.Equal(t, 4, c.InvalidatePath("a"), "three memory blocks plus one disk block")

	_, ok := c.Get(Key{Kind: KindData, Path: "a", Offset: 0})
	assert.False(t, ok)
	_, ok = c.Get(Key{Kind: KindData, Path: "b", Offset: 0})
	assert.True(t, ok)
}

func TestTiered_InvalidateRange(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	for _, off := range []uint64{0, 100, 200, 300} {
		c.Set(Key{Kind: KindData, Path: "a", Offset: off}, []byte("x"))
	}

	assert.Equal(t, 2, c.InvalidateRange(KindData, "a", 100, 300))

	_, ok := c.Get(Key{Kind: KindData, Path: "a", Offset: 0})
	assert.True(t, ok)
	_, ok = c.Get(Key{Kind: KindData, Path: "a", Offset: 100})
	assert.False(t, ok)
}

func TestTiered_SetStaysInMemoryUntilPressure(t *testing.T) {
	c := newTestTiered(t, 64*1024)

	key := Key{Kind: KindData, Path: "seg", Offset: 0}
	c.Set(key, []byte("x"))

	require.NoError(t, c.disk.Close())
	assert.Equal(t, 0, c.disk.Len(), "an unpressured block should not reach disk")

	_, ok := c.Get(key)
	assert.True(t, ok)
}

func TestTiered_Close(t *testing.T) {
	c := newTestTiered(t, 64*100)

	for i := range 200 {
		c.Set(Key{Kind: KindData, Path: fmt.Sprintf("seg-%d", i%10), Offset: uint64(i * 100)}, make([]byte, 100))
	}

	require.NoError(t, c.Close())
}

package blockcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func TestDisk(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDisk(DiskConfig{
		RootDir:      tmpDir,
		MaxSizeBytes: 1024,
	})
	require.NoError(t, err)

	k1 := Key{Kind: KindData, Path: "seg", Offset: 0}
	c.Set(k1, make([]byte, 400))

	require.Eventually(t, func() bool { return c.Len() == 1 }, waitFor, tick)
	assert.FileExists(t, filepath.Join(tmpDir, "seg", "1-0.blk"))

	got, ok := c.Get(k1)
	require.True(t, ok)
	assert.Len(t, got, 400)

	k2 := Key{Kind: KindData, Path: "seg", Offset: 1}
	c.Set(k2, make([]byte, 400))
	require.Eventually(t, func() bool { return c.Len() == 2 }, waitFor, tick)

	// Touch k1 so k2 is the eviction victim.
	_, ok = c.Get(k1)
	require.True(t, ok)

	// 1200 bytes would exceed the 1024 limit.
	k3 := Key{Kind: KindData, Path: "seg", Offset: 2}
	c.Set(k3, make([]byte, 400))
	require.Eventually(t, func() bool { return c.Len() == 2 }, waitFor, tick)

	_, ok = c.Get(k2)
	assert.False(t, ok, "k2 should have been evicted")
	assert.NoFileExists(t, filepath.Join(tmpDir, "seg", "1-1.blk"))

	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
	assert.Equal(t, int64(800), c.SizeBytes())
	assert.Equal(t, int64(1), c.Stats().Evictions)

	require.NoError(t, c.Close())
}

func TestDisk_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000}

	key := Key{Kind: KindData, Path: "seg", Offset: 0}

	// Write with the first instance.
	{
		c, err := NewDisk(cfg)
		require.NoError(t, err)
		c.Set(key, []byte("hello"))
		require.NoError(t, c.Close()) // waits for the write to land
	}

	// A fresh instance rebuilds its index from the directory.
	{
		c, err := NewDisk(cfg)
		require.NoError(t, err)
		got, ok := c.Get(key)
		require.True(t, ok)
		assert.Equal(t, "hello", string(got))
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(5), c.SizeBytes())
	}
}

func TestDisk_PathLayout(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDisk(DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000})
	require.NoError(t, err)

	key := Key{Kind: KindData, Path: "foo/bar", Offset: 7}
	c.Set(key, []byte("data"))

	expectedPath := filepath.Join(tmpDir, "foo/bar", "1-7.blk")
	require.Eventually(t, func() bool {
		_, err := os.Stat(expectedPath)
		return err == nil
	}, waitFor, tick)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "data", string(got))
}

func TestDisk_EmptyPath(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000}

	key := Key{Kind: KindMeta, Path: "", Offset: 9}

	{
		c, err := NewDisk(cfg)
		require.NoError(t, err)
		c.Set(key, []byte("m"))
		require.NoError(t, c.Close())
	}
	assert.FileExists(t, filepath.Join(tmpDir, "_misc", "3-9.blk"))

	// The empty path must survive the round trip through "_misc".
	c, err := NewDisk(cfg)
	require.NoError(t, err)
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "m", string(got))
}

func TestDisk_IgnoresForeignFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "readme.txt"), []byte("not a block"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "seg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "seg", "notablock.dat"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "seg", "1-5.blk"), []byte("abc"), 0644))

	c, err := NewDisk(DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000})
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len(), "only the valid block file should be indexed")

	got, ok := c.Get(Key{Kind: KindData, Path: "seg", Offset: 5})
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestDisk_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDisk(DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000})
	require.NoError(t, err)

	key := Key{Kind: KindData, Path: "seg", Offset: 0}
	assert.False(t, c.Delete(key))

	c.Set(key, []byte("x"))
	require.Eventually(t, func() bool { return c.Len() == 1 }, waitFor, tick)

	assert.True(t, c.Delete(key))
	assert.NoFileExists(t, filepath.Join(tmpDir, "seg", "1-0.blk"))
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Delete(key))
}

func TestDisk_InvalidatePath(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDisk(DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000})
	require.NoError(t, err)

	for off := uint64(0); off < 3; off++ {
		c.Set(Key{Kind: KindData, Path: "a", Offset: off}, []byte("x"))
		c.Set(Key{Kind: KindData, Path: "b", Offset: off}, []byte("x"))
	}
	require.Eventually(t, func() bool { return c.Len() == 6 }, waitFor, tick)

	assert.Equal(t, 3, c.InvalidatePath("a"))
	assert.Equal(t, 3, c.Len())
	assert.NoFileExists(t, filepath.Join(tmpDir, "a", "1-0.blk"))

	_, ok := c.Get(Key{Kind: KindData, Path: "a", Offset: 0})
	assert.False(t, ok)
	_, ok = c.Get(Key{Kind: KindData, Path: "b", Offset: 0})
	assert.True(t, ok)
}

func TestDisk_InvalidateRange(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDisk(DiskConfig{RootDir: tmpDir, MaxSizeBytes: 10000})
	require.NoError(t, err)

	for _, off := range []uint64{0, 100, 200, 300} {
		c.Set(Key{Kind: KindData, Path: "a", Offset: off}, []byte("x"))
	}
	c.Set(Key{Kind: KindIndex, Path: "a", Offset: 100}, []byte("x"))
	require.Eventually(t, func() bool { return c.Len() == 5 }, waitFor, tick)

	assert.Equal(t, 2, c.InvalidateRange(KindData, "a", 100, 300))

	_, ok := c.Get(Key{Kind: KindData, Path: "a", Offset: 0})
	assert.True(t, ok)
	_, ok = c.Get(Key{Kind: KindData, Path: "a", Offset: 100})
	assert.False(t, ok)
	_, ok = c.Get(Key{Kind: KindData, Path: "a", Offset: 300})
	assert.True(t, ok)
	_, ok = c.Get(Key{Kind: KindIndex, Path: "a", Offset: 100})
	assert.True(t, ok)
}

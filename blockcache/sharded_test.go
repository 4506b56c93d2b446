package blockcache

import (
	"fmt"
	"sync"
	"testing"
)

func TestSharded_BasicOperations(t *testing.T) {
	cache := NewSharded(1024 * 1024) // 1MB

	key := Key{Kind: KindData, Path: "seg-1", Offset: 0}
	data := []byte("test data")

	cache.Set(key, data)
	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	missKey := Key{Kind: KindData, Path: "seg-999", Offset: 0}
	_, ok = cache.Get(missKey)
	if ok {
		t.Fatal("expected cache miss")
	}

	if !cache.Delete(key) {
		t.Error("expected Delete to find the key")
	}
	if cache.Len() != 0 {
		t.Errorf("got Len %d, want 0", cache.Len())
	}
}

func TestSharded_ShardDistribution(t *testing.T) {
	cache := NewSharded(64 * 1024 * 1024) // 64MB

	data := make([]byte, 1024) // 1KB

	// Insert 1000 blocks
	for i := range 1000 {
		key := Key{
			Kind:   KindData,
			Path:   fmt.Sprintf("seg-%d", i%100),
			Offset: uint64(i * 4096),
		}
		cache.Set(key, data)
	}

	stats := cache.ShardStats()
	nonEmptyShards := 0
	for _, s := range stats {
		if s.SizeBytes > 0 {
			nonEmptyShards++
		}
	}

	// With 1000 blocks across 64 shards, most shards should have some.
	if nonEmptyShards < 30 {
		t.Errorf("poor shard distribution: only %d shards have blocks", nonEmptyShards)
	}

	if cache.Len() != 1000 {
		t.Errorf("got Len %d, want 1000", cache.Len())
	}
	if cache.SizeBytes() != 1000*1024 {
		t.Errorf("got SizeBytes %d, want %d", cache.SizeBytes(), 1000*1024)
	}
}

func TestSharded_Concurrent(t *testing.T) {
	cache := NewSharded(64 * 1024 * 1024) // 64MB

	data := make([]byte, 1024)

	const numGoroutines = 100
	const numOpsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for g := range numGoroutines {
		go func() {
			defer wg.Done()
			for i := range numOpsPerGoroutine {
				key := Key{
					Kind:   KindData,
					Path:   fmt.Sprintf("seg-%d", g),
					Offset: uint64(i * 4096),
				}
				cache.Set(key, data)
				cache.Get(key)
			}
		}()
	}

	wg.Wait()

	st := cache.Stats()
	total := st.Hits + st.Misses
	if total != numGoroutines*numOpsPerGoroutine {
		t.Errorf("stats mismatch: got %d total, want %d", total, numGoroutines*numOpsPerGoroutine)
	}
}

func TestSharded_InvalidatePath(t *testing.T) {
	cache := NewSharded(64 * 1024 * 1024)

	data := []byte("test")

	for i := range 100 {
		cache.Set(Key{Kind: KindData, Path: "seg-1", Offset: uint64(i * 4096)}, data)
		cache.Set(Key{Kind: KindData, Path: "seg-2", Offset: uint64(i * 4096)}, data)
	}

	removed := cache.InvalidatePath("seg-1")
	if removed != 100 {
		t.Errorf("got %d removed, want 100", removed)
	}

	_, ok := cache.Get(Key{Kind: KindData, Path: "seg-1", Offset: 0})
	if ok {
		t.Error("expected seg-1 to be invalidated")
	}

	_, ok = cache.Get(Key{Kind: KindData, Path: "seg-2", Offset: 0})
	if !ok {
		t.Error("expected seg-2 to still be cached")
	}
}

func TestSharded_InvalidateRange(t *testing.T) {
	cache := NewSharded(64 * 1024 * 1024)

	data := []byte("test")

	for i := range 100 {
		cache.Set(Key{Kind: KindData, Path: "seg-1", Offset: uint64(i * 4096)}, data)
	}

	// Blocks 10..19 fall inside [10*4096, 20*4096).
	removed := cache.InvalidateRange(KindData, "seg-1", 10*4096, 20*4096)
	if removed != 10 {
		t.Errorf("got %d removed, want 10", removed)
	}

	_, ok := cache.Get(Key{Kind: KindData, Path: "seg-1", Offset: 10 * 4096})
	if ok {
		t.Error("expected block inside the range to be invalidated")
	}
	_, ok = cache.Get(Key{Kind: KindData, Path: "seg-1", Offset: 20 * 4096})
	if !ok {
		t.Error("expected block past the range to still be cached")
	}
	if cache.Len() != 90 {
		t.Errorf("got Len %d, want 90", cache.Len())
	}
}

func BenchmarkLRU_Get(b *testing.B) {
	cache := NewLRU(64 * 1024 * 1024)
	key := Key{Kind: KindData, Path: "seg-1", Offset: 0}
	cache.Set(key, make([]byte, 4096))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cache.Get(key)
		}
	})
}

func BenchmarkSharded_Get(b *testing.B) {
	cache := NewSharded(64 * 1024 * 1024)
	key := Key{Kind: KindData, Path: "seg-1", Offset: 0}
	cache.Set(key, make([]byte, 4096))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cache.Get(key)
		}
	})
}

func BenchmarkLRU_GetMixed(b *testing.B) {
	cache := NewLRU(64 * 1024 * 1024)
	data := make([]byte, 4096)

	for i := range 1000 {
		cache.Set(Key{Kind: KindData, Path: fmt.Sprintf("seg-%d", i%10), Offset: uint64(i * 4096)}, data)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := Key{Kind: KindData, Path: fmt.Sprintf("seg-%d", i%10), Offset: uint64(i * 4096)}
			cache.Get(key)
			i++
		}
	})
}

func BenchmarkSharded_GetMixed(b *testing.B) {
	cache := NewSharded(64 * 1024 * 1024)
	data := make([]byte, 4096)

	for i := range 1000 {
		cache.Set(Key{Kind: KindData, Path: fmt.Sprintf("seg-%d", i%10), Offset: uint64(i * 4096)}, data)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := Key{Kind: KindData, Path: fmt.Sprintf("seg-%d", i%10), Offset: uint64(i * 4096)}
			cache.Get(key)
			i++
		}
	})
}

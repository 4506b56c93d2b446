// Package mmap provides memory-mapped file access for zero-copy reads.
//
// # Overview
//
// Memory mapping exposes file contents directly without copying data
// through user-space buffers. Snapshot files and locally stored blobs
// can be multiple gigabytes; mapping them keeps random reads cheap and
// lets the OS page cache do the heavy lifting.
//
// # Usage
//
//	m, err := mmap.Open("snapshot.lruc")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// Create a view into a specific region
//	region, _ := m.Region(offset, size)
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
// The package provides a unified API across platforms:
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Windows: Uses CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. The Close() method
// is idempotent and protected by atomic operations. However, callers must
// ensure no goroutines access Bytes() after Close() returns.
package mmap

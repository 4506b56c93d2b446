// Package store provides storage abstraction for immutable data blobs:
// cache snapshots, spilled block files, exported state.
//
// BlobStore is the interface for reading and writing blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap-backed reads
//   - MemoryStore: In-memory store for tests and small data
//   - CachingStore: Read-through block caching over any BlobStore
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - minio.Store: MinIO and other S3-compatible object storage
//   - dynamo.Store: DynamoDB-backed store for small, chunked blobs
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for streaming writes
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// For cloud backends, implement RangeReader for efficient partial reads:
//
//	type RangeReader interface {
//	    ReadRange(ctx, off, length int64) (io.ReadCloser, error)
//	}
package store

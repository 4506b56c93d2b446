// Package s3 provides an S3 implementation of the store.BlobStore interface.
//
// # Usage
//
//	st, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("caches/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Or with an existing client:
//
//	st := s3.NewStore(client, "my-bucket", "caches/")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads with CRC32C validation for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// ExpressStore targets S3 Express One Zone directory buckets and adds
// PutIfNotExists on top of conditional writes.
package s3

// Package dynamo provides a BlobStore implementation backed by DynamoDB.
//
// DynamoDB is not an object store, but for small blobs (snapshot
// manifests, coordination markers, spilled cache state) a single table
// gives conditional writes and per-item atomicity that S3 lacks. Blobs
// larger than one item are chunked; the chunk 0 item is the manifest and
// is written last, so readers never observe a partial blob.
//
// # Table schema
//
//   - Partition key: name (string) - the namespaced blob name
//   - Sort key: chunk (number) - 0 for the manifest, 1..n for the tail
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name lrugo-blobs \
//	  --attribute-definitions AttributeName=name,AttributeType=S AttributeName=chunk,AttributeType=N \
//	  --key-schema AttributeName=name,KeyType=HASH AttributeName=chunk,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// # Basic Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	st := dynamo.NewStore(dynamodb.NewFromConfig(cfg), "lrugo-blobs", "caches/")
//
//	err = st.PutIfNotExists(ctx, "leader", []byte(instanceID))
//	if errors.Is(err, dynamo.ErrConflict) {
//	    // another instance holds the marker
//	}
//
// PutIfNotExists is atomic per item, which is why it only accepts
// payloads that fit a single chunk.
package dynamo

package dynamo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/lrugo/store"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it; tests substitute an in-memory fake.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ErrConflict is returned by PutIfNotExists when the blob already exists.
var ErrConflict = errors.New("blob already exists")

// DynamoDB items are capped at 400KB; the default chunk size leaves
// headroom for the key and manifest attributes.
const defaultChunkSize = 350 * 1024

// putConcurrency bounds parallel chunk writes per Put call.
const putConcurrency = 8

// Store implements store.BlobStore on a DynamoDB table.
//
// Blobs are split into fixed-size chunks, one item per chunk. Chunk 0
// doubles as the manifest: it carries the blob size and chunk count next
// to the first slice of data. Put writes the tail chunks first and the
// manifest last, so a blob is only visible once it is complete.
type Store struct {
	client    Client
	tableName string
	namespace string
	chunkSize int
}

var _ store.BlobStore = (*Store)(nil)

type options struct {
	chunkSize int
}

// Option configures a Store.
type Option func(*options)

// WithChunkSize overrides the per-item payload size. Values above the
// DynamoDB item limit will make Put fail; the default leaves headroom.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// NewStore creates a new DynamoDB blob store.
// namespace is prepended to all blob names (e.g. "caches/"), so multiple
// stores can share one table.
func NewStore(client Client, tableName, namespace string, optFns ...Option) *Store {
	opts := options{chunkSize: defaultChunkSize}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		client:    client,
		tableName: tableName,
		namespace: namespace,
		chunkSize: opts.chunkSize,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.namespace, name)
}

// Open opens an existing blob for reading. The chunks are assembled into
// memory up front; DynamoDB blobs are small by construction.
func (s *Store) Open(ctx context.Context, name string) (store.Blob, error) {
	key := s.key(name)

	// The manifest is the commit point; read it with strong consistency.
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"name":  &types.AttributeValueMemberS{Value: key},
			"chunk": &types.AttributeValueMemberN{Value: "0"},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: get manifest: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}

	size, err := itemInt(out.Item, "size")
	if err != nil {
		return nil, err
	}
	chunks, err := itemInt(out.Item, "chunks")
	if err != nil {
		return nil, err
	}

	content := make([]byte, 0, size)
	content = append(content, itemData(out.Item)...)

	if chunks > 1 {
		content, err = s.readChunks(ctx, key, content, chunks)
		if err != nil {
			return nil, err
		}
	}

	if int64(len(content)) != size {
		return nil, fmt.Errorf("dynamo: blob %q has %d bytes, manifest says %d", name, len(content), size)
	}

	return &dynamoBlob{content: content}, nil
}

// Put writes a blob. The write is atomic from a reader's view: the
// manifest chunk lands last, and readers only see blobs with a manifest.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)

	n := 1
	if len(data) > s.chunkSize {
		n = (len(data) + s.chunkSize - 1) / s.chunkSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(putConcurrency)

	for i := 1; i < n; i++ {
		g.Go(func() error {
			return s.putChunk(gctx, key, i, data[i*s.chunkSize:min((i+1)*s.chunkSize, len(data))])
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	first := data
	if len(first) > s.chunkSize {
		first = data[:s.chunkSize]
	}

	if err := s.putManifest(ctx, key, first, int64(len(data)), n, false); err != nil {
		return err
	}

	// Chunks left over from a previous, larger write are unreachable once
	// the new manifest lands; sweeping them is best-effort.
	_ = s.deleteChunksFrom(ctx, key, int64(n))

	return nil
}

// PutIfNotExists writes a blob only if no blob with that name exists and
// returns ErrConflict when the name is taken. The payload must fit one
// chunk; DynamoDB conditional writes are atomic per item only.
func (s *Store) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	if len(data) > s.chunkSize {
		return fmt.Errorf("dynamo: conditional put of %d bytes exceeds one chunk (%d)", len(data), s.chunkSize)
	}
	return s.putManifest(ctx, s.key(name), data, int64(len(data)), 1, true)
}

// Create creates a new blob. Writes are buffered in memory and published
// by Close using the context passed to Create.
func (s *Store) Create(ctx context.Context, name string) (store.WritableBlob, error) {
	return &dynamoWritableBlob{
		store: s,
		ctx:   ctx,
		name:  name,
	}, nil
}

// Delete removes a blob. The manifest goes first so readers stop seeing
// the blob; the remaining chunks are unreachable and swept afterwards.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"name":  &types.AttributeValueMemberS{Value: key},
			"chunk": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo: delete manifest: %w", err)
	}

	return s.deleteChunksFrom(ctx, key, 1)
}

// List returns all blob names with the given prefix, sorted. It scans
// the table for manifest chunks, so keep one table per deployment or
// partition it with namespaces.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)

	// Every blob has exactly one chunk 0, so filtering on it yields one
	// row per blob.
	filter := "chunk = :zero"
	values := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
	}
	if full != "" {
		filter += " AND begins_with(#n, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: full}
	}

	var names []string

	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.tableName),
			FilterExpression:          aws.String(filter),
			ProjectionExpression:      aws.String("#n"),
			ExpressionAttributeNames:  map[string]string{"#n": "name"},
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo: scan: %w", err)
		}

		for _, item := range resp.Items {
			attr, ok := item["name"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			// Strip our namespace
			name := strings.TrimPrefix(attr.Value, s.namespace)
			name = strings.TrimPrefix(name, "/")
			if name != "" {
				names = append(names, name)
			}
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	sort.Strings(names)
	return names, nil
}

func (s *Store) putChunk(ctx context.Context, key string, chunk int, data []byte) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"name":  &types.AttributeValueMemberS{Value: key},
			"chunk": &types.AttributeValueMemberN{Value: strconv.Itoa(chunk)},
			"data":  &types.AttributeValueMemberB{Value: data},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo: put chunk %d: %w", chunk, err)
	}
	return nil
}

func (s *Store) putManifest(ctx context.Context, key string, first []byte, size int64, chunks int, ifNotExists bool) error {
	item := map[string]types.AttributeValue{
		"name":   &types.AttributeValueMemberS{Value: key},
		"chunk":  &types.AttributeValueMemberN{Value: "0"},
		"size":   &types.AttributeValueMemberN{Value: strconv.FormatInt(size, 10)},
		"chunks": &types.AttributeValueMemberN{Value: strconv.Itoa(chunks)},
	}
	if len(first) > 0 {
		item["data"] = &types.AttributeValueMemberB{Value: first}
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if ifNotExists {
		// "name" is a DynamoDB reserved word, hence the placeholder.
		input.ConditionExpression = aws.String("attribute_not_exists(#n)")
		input.ExpressionAttributeNames = map[string]string{"#n": "name"}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConflict
		}
		return fmt.Errorf("dynamo: put manifest: %w", err)
	}

	return nil
}

// readChunks appends chunks 1..chunks-1 to content, in order. A gap in
// the sequence means the blob is incomplete and is reported as an error.
func (s *Store) readChunks(ctx context.Context, key string, content []byte, chunks int64) ([]byte, error) {
	next := int64(1)

	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.tableName),
			KeyConditionExpression:   aws.String("#n = :name AND chunk BETWEEN :one AND :last"),
			ExpressionAttributeNames: map[string]string{"#n": "name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":name": &types.AttributeValueMemberS{Value: key},
				":one":  &types.AttributeValueMemberN{Value: "1"},
				":last": &types.AttributeValueMemberN{Value: strconv.FormatInt(chunks-1, 10)},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo: query chunks: %w", err)
		}

		for _, item := range out.Items {
			got, err := itemInt(item, "chunk")
			if err != nil {
				return nil, err
			}
			if got != next {
				return nil, fmt.Errorf("dynamo: blob chunk %d missing", next)
			}
			content = append(content, itemData(item)...)
			next++
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if next != chunks {
		return nil, fmt.Errorf("dynamo: blob chunk %d missing", next)
	}

	return content, nil
}

// deleteChunksFrom removes all chunks >= from for the given key.
func (s *Store) deleteChunksFrom(ctx context.Context, key string, from int64) error {
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.tableName),
			KeyConditionExpression:   aws.String("#n = :name AND chunk >= :from"),
			ExpressionAttributeNames: map[string]string{"#n": "name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":name": &types.AttributeValueMemberS{Value: key},
				":from": &types.AttributeValueMemberN{Value: strconv.FormatInt(from, 10)},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return fmt.Errorf("dynamo: query chunks: %w", err)
		}

		for _, item := range out.Items {
			chunk, err := itemInt(item, "chunk")
			if err != nil {
				return err
			}
			_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"name":  &types.AttributeValueMemberS{Value: key},
					"chunk": &types.AttributeValueMemberN{Value: strconv.FormatInt(chunk, 10)},
				},
			})
			if err != nil {
				return fmt.Errorf("dynamo: delete chunk %d: %w", chunk, err)
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return nil
}

func itemInt(item map[string]types.AttributeValue, attr string) (int64, error) {
	n, ok := item[attr].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamo: invalid %s attribute", attr)
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamo: parse %s: %w", attr, err)
	}
	return v, nil
}

// itemData returns the chunk payload. Empty chunks omit the attribute.
func itemData(item map[string]types.AttributeValue) []byte {
	b, ok := item["data"].(*types.AttributeValueMemberB)
	if !ok {
		return nil
	}
	return b.Value
}

// dynamoBlob serves reads from the assembled in-memory content.
type dynamoBlob struct {
	content []byte
}

var _ store.RangeReader = (*dynamoBlob)(nil)

func (b *dynamoBlob) Close() error {
	return nil
}

func (b *dynamoBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *dynamoBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *dynamoBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return nil, io.EOF
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}

// dynamoWritableBlob implements store.WritableBlob by buffering until Close.
type dynamoWritableBlob struct {
	store  *Store
	ctx    context.Context
	name   string
	buf    bytes.Buffer
	closed atomic.Bool
}

func (b *dynamoWritableBlob) Write(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

func (b *dynamoWritableBlob) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return errors.New("already closed")
	}
	return b.store.Put(b.ctx, b.name, b.buf.Bytes())
}

func (b *dynamoWritableBlob) Sync() error {
	return nil // The blob is only published by Close
}

package lrugo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lrugo/persistence"
)

var (
	// ErrInvalidCapacity is returned when a capacity is not positive.
	ErrInvalidCapacity = errors.New("capacity must be positive")

	// ErrNilLoader is returned when a LoadingCache is constructed without a loader.
	ErrNilLoader = errors.New("loader must not be nil")

	// ErrNilCache is returned when a LoadingCache is constructed without a cache.
	ErrNilCache = errors.New("cache must not be nil")

	// ErrSnapshotCorrupt is returned when a snapshot fails structural or
	// checksum validation.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// ErrInvalidShardCount indicates an unsupported shard count.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidShardCount struct {
	Shards int
	cause  error
}

func (e *ErrInvalidShardCount) Error() string {
	return fmt.Sprintf("invalid shard count: %d (must be a power of two)", e.Shards)
}

func (e *ErrInvalidShardCount) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Snapshot corruption unification.
	if errors.Is(err, persistence.ErrInvalidMagic) ||
		errors.Is(err, persistence.ErrChecksumMismatch) ||
		errors.Is(err, persistence.ErrTruncated) ||
		errors.Is(err, persistence.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	var iv *persistence.ErrInvalidVersion
	if errors.As(err, &iv) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}

	return err
}

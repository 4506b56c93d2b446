package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/lrugo/internal/hash"
)

// Snapshot is the decoded form of a snapshot file: the codec-encoded
// entry payload plus the metadata needed to restore it.
type Snapshot struct {
	// Capacity is the cache capacity at the time of the snapshot.
	Capacity int
	// EntryCount is the number of entries encoded in Payload.
	EntryCount int
	// CodecName names the codec that produced Payload.
	CodecName string
	// Payload is the uncompressed, codec-encoded entry list in
	// eviction order (oldest first).
	Payload []byte
}

// Write serializes the snapshot to w using the given compression.
//
// The payload is compressed in memory first because the header, which
// precedes it, records the compressed size and checksum.
func Write(w io.Writer, snap *Snapshot, comp Compression) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	payload := snap.Payload
	if comp != CompressionNone {
		var buf bytes.Buffer
		buf.Grow(len(payload) / 2)

		bw := newBlockWriter(&buf, comp, 0)
		if _, err := bw.Write(payload); err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		payload = buf.Bytes()
	}

	h := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(comp),
		EntryCount:  uint32(snap.EntryCount),
		Capacity:    uint32(snap.Capacity),
		RawSize:     uint64(len(snap.Payload)),
		PayloadSize: uint64(len(payload)),
		PayloadCRC:  hash.CRC32C(payload),
	}
	if err := h.setCodecName(snap.CodecName); err != nil {
		return err
	}

	hb, err := h.encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Read parses a snapshot from r, verifying checksums and decompressing
// the payload. The returned payload is always uncompressed.
func Read(r io.Reader) (*Snapshot, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: payload shorter than %d bytes", ErrTruncated, h.PayloadSize)
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	if got := hash.CRC32C(payload); got != h.PayloadCRC {
		return nil, fmt.Errorf("%w: payload crc 0x%08x, want 0x%08x", ErrChecksumMismatch, got, h.PayloadCRC)
	}

	if comp := Compression(h.Compression); comp != CompressionNone {
		payload, err = decompressAll(payload, comp)
		if err != nil {
			return nil, err
		}
	}
	if uint64(len(payload)) != h.RawSize {
		return nil, fmt.Errorf("%w: payload size %d, want %d", ErrCorrupt, len(payload), h.RawSize)
	}

	return &Snapshot{
		Capacity:   int(h.Capacity),
		EntryCount: int(h.EntryCount),
		CodecName:  h.codecName(),
		Payload:    payload,
	}, nil
}

// WriteFile writes the snapshot to filename atomically: the bytes go to
// a temp file in the same directory which is fsynced and renamed into
// place, so a crash mid-write never leaves a half-written snapshot.
func WriteFile(filename string, snap *Snapshot, comp Compression) (err error) {
	dir := filepath.Dir(filename)

	f, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = Write(f, snap, comp); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err = os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot from filename.
func ReadFile(filename string) (*Snapshot, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return Read(f)
}

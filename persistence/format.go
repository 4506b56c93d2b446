package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/lrugo/internal/hash"
)

const (
	// MagicNumber identifies snapshot files ("LRUC").
	MagicNumber uint32 = 0x4C525543

	// Version is the current format version (major<<16 | minor<<8 | patch).
	// Readers accept any snapshot with a matching major version.
	Version uint32 = 0x00010000

	// headerSize is the fixed encoded size of Header.
	headerSize = 64

	// codecNameSize is the fixed space reserved for the codec name.
	codecNameSize = 16

	// headerChecksumOffset is where the header checksum field starts.
	// Everything before it is covered by that checksum.
	headerChecksumOffset = 56

	// maxPayloadBytes caps the payload allocation so a corrupt header
	// cannot drive the reader out of memory. Snapshots mirror an
	// in-memory cache, so 16 GiB is already far past plausible.
	maxPayloadBytes = 1 << 34
)

var (
	// ErrInvalidMagic indicates the input is not a snapshot file.
	ErrInvalidMagic = errors.New("invalid snapshot magic")

	// ErrChecksumMismatch indicates the header or payload failed
	// checksum verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrTruncated indicates the input ended before the length recorded
	// in the header.
	ErrTruncated = errors.New("truncated snapshot")

	// ErrCorrupt indicates structural damage that checksums cannot
	// attribute more precisely, such as inconsistent block sizes.
	ErrCorrupt = errors.New("corrupt snapshot data")
)

// ErrInvalidVersion is returned when a snapshot was written by an
// incompatible (different major) format version.
type ErrInvalidVersion struct {
	Version uint32
}

func (e *ErrInvalidVersion) Error() string {
	return fmt.Sprintf("unsupported snapshot version 0x%08x (want major %d)", e.Version, Version>>16)
}

// Header is the fixed-size snapshot file header. All integers are
// little-endian. Blank fields are zero padding on disk.
type Header struct {
	Magic       uint32
	Version     uint32
	Compression uint8
	_           [3]byte
	EntryCount  uint32
	Capacity    uint32
	CodecName   [16]byte
	RawSize     uint64 // payload size before compression
	PayloadSize uint64 // payload bytes following the header
	PayloadCRC  uint32 // CRC32C of the payload bytes as written
	HeaderCRC   uint32 // CRC32C of the first 56 header bytes
	_           [4]byte
}

// encode serializes the header and stamps HeaderCRC.
func (h *Header) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize)

	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	b := buf.Bytes()
	if len(b) != headerSize {
		return nil, fmt.Errorf("encode header: got %d bytes, want %d", len(b), headerSize)
	}

	crc := hash.CRC32C(b[:headerChecksumOffset])
	binary.LittleEndian.PutUint32(b[headerChecksumOffset:], crc)
	h.HeaderCRC = crc

	return b, nil
}

// readHeader reads and verifies the 64-byte header. The magic number is
// checked before the checksum so non-snapshot input fails with
// ErrInvalidMagic rather than a checksum error.
func readHeader(r io.Reader) (*Header, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	if magic := binary.LittleEndian.Uint32(b[0:4]); magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}

	want := binary.LittleEndian.Uint32(b[headerChecksumOffset:])
	if got := hash.CRC32C(b[:headerChecksumOffset]); got != want {
		return nil, fmt.Errorf("%w: header crc 0x%08x, want 0x%08x", ErrChecksumMismatch, got, want)
	}

	var h Header
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	if h.Version>>16 != Version>>16 {
		return nil, &ErrInvalidVersion{Version: h.Version}
	}

	if h.PayloadSize > maxPayloadBytes || h.RawSize > maxPayloadBytes {
		return nil, fmt.Errorf("%w: implausible payload size %d", ErrCorrupt, h.PayloadSize)
	}

	return &h, nil
}

// codecName extracts the zero-padded codec name from the header.
func (h *Header) codecName() string {
	return strings.TrimRight(string(h.CodecName[:]), "\x00")
}

// setCodecName stores name zero-padded, rejecting names that do not fit.
func (h *Header) setCodecName(name string) error {
	if len(name) > codecNameSize {
		return fmt.Errorf("codec name %q exceeds %d bytes", name, codecNameSize)
	}
	copy(h.CodecName[:], name)
	return nil
}

package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload verbatim.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a modest ratio, a good default for
	// snapshots taken on a schedule.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades CPU for a better ratio, a good fit for
	// snapshots shipped over the network or archived.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Compressed payloads are a sequence of blocks, each prefixed with an
// 8-byte header: [UncompressedSize uint32][CompressedSize uint32].
// CompressedSize == 0 marks a block stored raw because compression did
// not pay off for it.
const (
	blockHeaderSize  = 8
	defaultBlockSize = 256 * 1024

	// maxBlockBytes bounds the per-block allocation on read. Writers
	// emit 256 KiB blocks; the reader stays lenient for future block
	// sizes without trusting an arbitrary uint32.
	maxBlockBytes = 1 << 30
)

// compressBlock compresses one block and prepends the block header.
// Blocks that compress to more than 90% of their input are stored raw.
func compressBlock(data []byte, comp Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch comp {
	case CompressionLZ4:
		compressed, err = compressBlockLZ4(data)
	case CompressionZSTD:
		compressed, err = compressBlockZSTD(data)
	default:
		return nil, fmt.Errorf("unsupported compression %s", comp)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0) // 0 = raw
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

func compressBlockLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func compressBlockZSTD(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

// blockWriter buffers payload bytes and emits them as compressed blocks.
type blockWriter struct {
	w         io.Writer
	comp      Compression
	blockSize int
	buffer    *bytes.Buffer
	written   int64
}

func newBlockWriter(w io.Writer, comp Compression, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &blockWriter{
		w:         w,
		comp:      comp,
		blockSize: blockSize,
		buffer:    bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

func (bw *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := bw.blockSize - bw.buffer.Len()
		if space <= 0 {
			if err := bw.flushBlock(); err != nil {
				return total, err
			}
			space = bw.blockSize
		}

		toWrite := min(len(p), space)
		n, err := bw.buffer.Write(p[:toWrite])
		if err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

func (bw *blockWriter) flushBlock() error {
	if bw.buffer.Len() == 0 {
		return nil
	}

	block, err := compressBlock(bw.buffer.Bytes(), bw.comp)
	if err != nil {
		return err
	}

	n, err := bw.w.Write(block)
	if err != nil {
		return err
	}
	bw.written += int64(n)
	bw.buffer.Reset()
	return nil
}

// Flush emits any buffered bytes as a final block.
func (bw *blockWriter) Flush() error {
	return bw.flushBlock()
}

// decompressAll walks the block sequence and reassembles the payload.
func decompressAll(data []byte, comp Compression) ([]byte, error) {
	var result []byte

	for off := 0; off < len(data); {
		if off+blockHeaderSize > len(data) {
			return nil, fmt.Errorf("%w: partial block header", ErrTruncated)
		}

		rawSize := binary.LittleEndian.Uint32(data[off:])
		compSize := binary.LittleEndian.Uint32(data[off+4:])
		off += blockHeaderSize

		if rawSize > maxBlockBytes {
			return nil, fmt.Errorf("%w: block claims %d raw bytes", ErrCorrupt, rawSize)
		}

		if compSize == 0 {
			// Raw block
			if off+int(rawSize) > len(data) {
				return nil, fmt.Errorf("%w: raw block extends past payload", ErrTruncated)
			}
			result = append(result, data[off:off+int(rawSize)]...)
			off += int(rawSize)
			continue
		}

		if off+int(compSize) > len(data) {
			return nil, fmt.Errorf("%w: compressed block extends past payload", ErrTruncated)
		}

		block, err := decompressBlock(data[off:off+int(compSize)], rawSize, comp)
		if err != nil {
			return nil, err
		}
		result = append(result, block...)
		off += int(compSize)
	}

	return result, nil
}

func decompressBlock(compressed []byte, rawSize uint32, comp Compression) ([]byte, error) {
	result := make([]byte, rawSize)

	switch comp {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(compressed, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: block size %d, want %d", ErrCorrupt, n, rawSize)
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressed, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: block size %d, want %d", ErrCorrupt, len(decoded), rawSize)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %s", ErrCorrupt, comp)
	}
}

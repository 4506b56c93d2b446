// Package persistence implements the on-disk snapshot container.
//
// A snapshot is a single self-describing file: a fixed 64-byte header
// followed by the payload, which is the codec-encoded entry list in
// eviction order (oldest first). The header records the codec name, the
// compression algorithm and the checksums needed to detect corruption
// before the payload is handed back to the caller.
//
// # File Layout
//
//	+--------------------+
//	| Header (64 bytes)  |  magic, version, codec, compression, checksums
//	+--------------------+
//	| Payload            |  codec-encoded entries, optionally compressed
//	+--------------------+
//
// Compressed payloads are split into blocks, each prefixed with an 8-byte
// block header so incompressible blocks can be stored raw.
//
// # Integrity
//
// All checksums are CRC32-Castagnoli. The header carries its own checksum
// over the first 56 bytes and a second checksum over the payload bytes as
// written. Readers verify both before decoding anything, so a truncated or
// bit-flipped snapshot fails with ErrChecksumMismatch or ErrTruncated
// instead of producing garbage entries.
//
// Forward compatibility is versioned: readers accept any snapshot whose
// major version matches, and reject the rest with ErrInvalidVersion.
package persistence

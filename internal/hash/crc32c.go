// Package hash provides the checksum primitives used for data integrity.
//
// All checksums use CRC32-Castagnoli (CRC32C), the polynomial used by
// iSCSI, Btrfs, RocksDB and LevelDB. Go's crc32 package dispatches to
// hardware instructions (SSE4.2 on x86, CRC extension on ARM) when
// available, so snapshot and block verification stays off the profile.
package hash

import (
	"hash"
	"hash/crc32"
)

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial.
// Computing this once avoids repeated MakeTable calls.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32 for streaming use:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

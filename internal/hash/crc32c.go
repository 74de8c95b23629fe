package hash

import (
	"encoding/binary"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// AppendCRC32C appends the little-endian checksum of buf to buf.
func AppendCRC32C(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, CRC32C(buf))
}

// SplitCRC32C separates a buffer produced by AppendCRC32C into payload and
// reports whether the trailing checksum matches.
func SplitCRC32C(buf []byte) ([]byte, bool) {
	if len(buf) < 4 {
		return nil, false
	}
	payload := buf[:len(buf)-4]
	want := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	return payload, CRC32C(payload) == want
}

// Package hash provides the CRC32-Castagnoli checksum used to frame
// serialized hypervectors and accumulators.
//
// For one-shot checksums:
//
//	sum := hash.CRC32C(data)
//
// For framed buffers:
//
//	framed := hash.AppendCRC32C(payload)
//	payload, ok := hash.SplitCRC32C(framed)
//
// Go's crc32 package uses SSE4.2 or the ARM CRC extension when available.
package hash

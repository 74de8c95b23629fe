package hypervector

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/internal/hash"
)

// Envelope layout for persisted vectors (little-endian):
//
//	"HV" | version u8 | reserved u8 | dimension u32 | words [Words]u64 | crc32c u32
//
// Consumers store the envelope as an opaque blob. The version byte is
// bumped on any layout change.
const (
	envelopeMagic   = "HV"
	envelopeVersion = 1
	envelopeHeader  = 2 + 1 + 1 + 4

	// EnvelopeSize is the length of MarshalBinary output.
	EnvelopeSize = envelopeHeader + Words*8 + 4
)

// MarshalBinary implements encoding.BinaryMarshaler.
func (v Vector) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, EnvelopeSize)
	buf = append(buf, envelopeMagic...)
	buf = append(buf, envelopeVersion, 0)
	buf = binary.LittleEndian.AppendUint32(buf, Dimension)
	for _, w := range v.words() {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return hash.AppendCRC32C(buf), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *Vector) UnmarshalBinary(data []byte) error {
	if len(data) != EnvelopeSize {
		return &errdefs.FormatError{Source: "vector", Reason: fmt.Sprintf("envelope must be %d bytes, got %d", EnvelopeSize, len(data))}
	}
	payload, ok := hash.SplitCRC32C(data)
	if !ok {
		return &errdefs.FormatError{Source: "vector", Reason: "checksum mismatch"}
	}
	if string(payload[:2]) != envelopeMagic {
		return &errdefs.FormatError{Source: "vector", Reason: "bad magic"}
	}
	if payload[2] != envelopeVersion {
		return &errdefs.FormatError{Source: "vector", Reason: fmt.Sprintf("unsupported version %d", payload[2])}
	}
	if dim := binary.LittleEndian.Uint32(payload[4:]); dim != Dimension {
		return &errdefs.FormatError{Source: "vector", Reason: fmt.Sprintf("dimension mismatch: expected %d, got %d", Dimension, dim)}
	}

	out := new([Words]uint64)
	body := payload[envelopeHeader:]
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(body[i*8:])
	}
	if out[Words-1]&^lastWordMask != 0 {
		return &errdefs.FormatError{Source: "vector", Reason: "padding bits set"}
	}
	v.w = out
	return nil
}

// MarshalText encodes the packed bytes as lowercase hex, for JSON results.
func (v Vector) MarshalText() ([]byte, error) {
	b := v.Bytes()
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out, nil
}

// UnmarshalText decodes MarshalText output.
func (v *Vector) UnmarshalText(text []byte) error {
	b := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(b, text); err != nil {
		return &errdefs.FormatError{Source: "vector", Reason: "invalid hex", Err: err}
	}
	dec, err := FromBytes(b)
	if err != nil {
		return err
	}
	*v = dec
	return nil
}

package hypervector

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/internal/hash"
	"github.com/luminous-dynamics/hdc/internal/simd"
	"github.com/pierrec/lz4/v4"
)

// Accumulator is the mergeable form of Bundle. It keeps per-position set
// counts and the number of vectors added, and only collapses to a Vector
// in Finalize. Merge is associative and commutative, so any partition of
// the inputs across workers or chunks finalizes to the same vector.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	counts []uint32
	total  uint32
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) ensure() {
	if a.counts == nil {
		a.counts = make([]uint32, Words*64)
	}
}

// Add votes v into the accumulator.
func (a *Accumulator) Add(v Vector) {
	a.ensure()
	simd.AccumulateBits(a.counts, v.words()[:])
	a.total++
}

// AddWeighted votes v with integer weight w, equivalent to adding it w
// times. A zero weight is a no-op.
func (a *Accumulator) AddWeighted(v Vector, w uint32) {
	if w == 0 {
		return
	}
	a.ensure()
	for wi, word := range v.words() {
		for word != 0 {
			a.counts[wi*64+bits.TrailingZeros64(word)] += w
			word &= word - 1
		}
	}
	a.total += w
}

// Merge folds other into a. other is left unchanged.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other.total == 0 {
		return
	}
	a.ensure()
	for i, c := range other.counts {
		a.counts[i] += c
	}
	a.total += other.total
}

// Count returns the number of vectors added, including merged ones.
func (a *Accumulator) Count() int {
	return int(a.total)
}

// Clone returns an independent copy.
func (a *Accumulator) Clone() *Accumulator {
	c := &Accumulator{total: a.total}
	if a.counts != nil {
		c.counts = make([]uint32, len(a.counts))
		copy(c.counts, a.counts)
	}
	return c
}

// Finalize collapses the counts by majority vote. A position set in
// exactly half of an even number of inputs resolves to 0. Finalizing an
// empty accumulator is an encoding error.
func (a *Accumulator) Finalize() (Vector, error) {
	if a.total == 0 {
		return Vector{}, errdefs.Encoding("cannot finalize an empty accumulator")
	}
	out := new([Words]uint64)
	for i := 0; i < Dimension; i++ {
		if 2*uint64(a.counts[i]) > uint64(a.total) {
			out[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return Vector{w: out}, nil
}

const (
	accumulatorMagic   = "HA"
	accumulatorVersion = 1
	accumulatorHeader  = 2 + 1 + 1 + 4 + 4 + 4 // magic, version, flags, dimension, total, raw size
)

// MarshalBinary encodes the accumulator as an LZ4-compressed, CRC32C-framed
// snapshot so partial results can be shipped between hosts and merged.
//
// Layout: "HA" | version u8 | flags u8 | dimension u32 | total u32 |
// raw size u32 | lz4 block | crc32c u32. Flags bit 0 marks an
// uncompressed body.
func (a *Accumulator) MarshalBinary() ([]byte, error) {
	raw := make([]byte, Dimension*4)
	if a.counts != nil {
		for i := 0; i < Dimension; i++ {
			binary.LittleEndian.PutUint32(raw[i*4:], a.counts[i])
		}
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("compress accumulator: %w", err)
	}

	var flags byte
	body := compressed[:n]
	if n == 0 || n >= len(raw) {
		flags |= 1
		body = raw
	}

	buf := make([]byte, 0, accumulatorHeader+len(body)+4)
	buf = append(buf, accumulatorMagic...)
	buf = append(buf, accumulatorVersion, flags)
	buf = binary.LittleEndian.AppendUint32(buf, Dimension)
	buf = binary.LittleEndian.AppendUint32(buf, a.total)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	buf = append(buf, body...)
	return hash.AppendCRC32C(buf), nil
}

// UnmarshalBinary restores a snapshot written by MarshalBinary.
func (a *Accumulator) UnmarshalBinary(data []byte) error {
	payload, ok := hash.SplitCRC32C(data)
	if !ok {
		return &errdefs.FormatError{Source: "accumulator", Reason: "checksum mismatch"}
	}
	if len(payload) < accumulatorHeader || string(payload[:2]) != accumulatorMagic {
		return &errdefs.FormatError{Source: "accumulator", Reason: "bad header"}
	}
	if payload[2] != accumulatorVersion {
		return &errdefs.FormatError{Source: "accumulator", Reason: fmt.Sprintf("unsupported version %d", payload[2])}
	}
	flags := payload[3]
	if dim := binary.LittleEndian.Uint32(payload[4:]); dim != Dimension {
		return &errdefs.FormatError{Source: "accumulator", Reason: fmt.Sprintf("dimension mismatch: expected %d, got %d", Dimension, dim)}
	}
	total := binary.LittleEndian.Uint32(payload[8:])
	rawSize := binary.LittleEndian.Uint32(payload[12:])
	if rawSize != Dimension*4 {
		return &errdefs.FormatError{Source: "accumulator", Reason: "bad body size"}
	}
	body := payload[accumulatorHeader:]

	raw := body
	if flags&1 == 0 {
		raw = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return &errdefs.FormatError{Source: "accumulator", Reason: "corrupt lz4 block", Err: err}
		}
		raw = raw[:n]
	}
	if len(raw) != int(rawSize) {
		return &errdefs.FormatError{Source: "accumulator", Reason: "truncated body"}
	}

	a.counts = make([]uint32, Words*64)
	for i := 0; i < Dimension; i++ {
		c := binary.LittleEndian.Uint32(raw[i*4:])
		if c > total {
			return &errdefs.FormatError{Source: "accumulator", Reason: "count exceeds total"}
		}
		a.counts[i] = c
	}
	a.total = total
	return nil
}

// Package hypervector implements fixed-width binary hypervectors and their
// algebra: bind (XOR), bundle (majority vote), permute (cyclic rotation)
// and Hamming similarity.
//
// Vectors are bit-packed into uint64 words; bit i lives in word i/64 at
// position i%64. Padding bits above Dimension are always zero.
//
// All operations return new vectors and never mutate their operands.
package hypervector

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/internal/simd"
)

const (
	// Dimension is the number of bits in every hypervector.
	Dimension = 10000

	// Words is the number of uint64 words backing a vector.
	Words = (Dimension + 63) / 64

	// Bytes is the packed byte length of a vector.
	Bytes = (Dimension + 7) / 8

	lastWordMask = (uint64(1) << (Dimension % 64)) - 1
)

var zeroWords [Words]uint64

// Vector is an immutable hypervector. The zero value is the all-zero vector.
type Vector struct {
	w *[Words]uint64
}

func (v Vector) words() *[Words]uint64 {
	if v.w == nil {
		return &zeroWords
	}
	return v.w
}

// Zero returns the all-zero vector.
func Zero() Vector {
	return Vector{w: new([Words]uint64)}
}

// Random returns the deterministic pseudorandom vector for (seed, label).
// Identical inputs yield bit-identical vectors across runs and platforms.
func Random(seed Seed, label string) Vector {
	var buf [Words * 8]byte
	seed.expand(label, buf[:Bytes])
	return fromPacked(buf[:])
}

func fromPacked(b []byte) Vector {
	out := new([Words]uint64)
	var tmp [8]byte
	for i := range out {
		n := copy(tmp[:], b[i*8:min(len(b), i*8+8)])
		clear(tmp[n:])
		out[i] = binary.LittleEndian.Uint64(tmp[:])
	}
	out[Words-1] &= lastWordMask
	return Vector{w: out}
}

// FromBytes decodes a packed little-endian buffer of exactly Bytes bytes.
func FromBytes(b []byte) (Vector, error) {
	if len(b) != Bytes {
		return Vector{}, &errdefs.FormatError{
			Reason: fmt.Sprintf("vector must be %d bytes, got %d", Bytes, len(b)),
		}
	}
	padded := make([]byte, Words*8)
	copy(padded, b)
	return fromPacked(padded), nil
}

// FromWords copies exactly Words words. Padding bits are cleared.
func FromWords(words []uint64) (Vector, error) {
	if len(words) != Words {
		return Vector{}, &errdefs.FormatError{
			Reason: fmt.Sprintf("vector must be %d words, got %d", Words, len(words)),
		}
	}
	out := new([Words]uint64)
	copy(out[:], words)
	out[Words-1] &= lastWordMask
	return Vector{w: out}, nil
}

// Bytes returns the packed little-endian encoding (Bytes long).
func (v Vector) Bytes() []byte {
	buf := make([]byte, Words*8)
	for i, w := range v.words() {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return buf[:Bytes]
}

// Words returns a copy of the backing words.
func (v Vector) Words() []uint64 {
	out := make([]uint64, Words)
	copy(out, v.words()[:])
	return out
}

// Bit reports whether bit i is set. It panics if i is out of range.
func (v Vector) Bit(i int) bool {
	if i < 0 || i >= Dimension {
		panic(fmt.Sprintf("hypervector: bit index %d out of range", i))
	}
	return v.words()[i/64]>>(uint(i)%64)&1 == 1
}

// WithBit returns a copy of v with bit i set to b.
func (v Vector) WithBit(i int, b bool) Vector {
	if i < 0 || i >= Dimension {
		panic(fmt.Sprintf("hypervector: bit index %d out of range", i))
	}
	out := *v.words()
	if b {
		out[i/64] |= 1 << (uint(i) % 64)
	} else {
		out[i/64] &^= 1 << (uint(i) % 64)
	}
	return Vector{w: &out}
}

// Popcount returns the number of set bits.
func (v Vector) Popcount() int {
	return simd.PopcountWords(v.words()[:])
}

// Equal reports whether a and b are bit-identical.
func Equal(a, b Vector) bool {
	return *a.words() == *b.words()
}

// Bind associates two vectors via XOR. It is self-inverse, commutative and
// associative: Bind(Bind(a, b), b) == a.
func Bind(a, b Vector) Vector {
	out := *a.words()
	simd.XorWords(out[:], b.words()[:])
	return Vector{w: &out}
}

// BindAll folds Bind over vs. An empty input yields the zero vector,
// which is the identity for Bind.
func BindAll(vs ...Vector) Vector {
	out := new([Words]uint64)
	for _, v := range vs {
		simd.XorWords(out[:], v.words()[:])
	}
	return Vector{w: out}
}

// Permute cyclically rotates v so that bit i moves to (i+shift) mod
// Dimension. Negative shifts rotate the other way; Permute(v, Dimension)
// is the identity.
func Permute(v Vector, shift int) Vector {
	s := shift % Dimension
	if s < 0 {
		s += Dimension
	}
	if s == 0 {
		return v
	}

	src := v.words()
	out := new([Words]uint64)
	for w := range out {
		base := w * 64
		start := base - s
		if start < 0 {
			start += Dimension
		}
		out[w] = readBits(src, start, min(64, Dimension-base))
	}
	return Vector{w: out}
}

// readBits returns n (<= 64) bits starting at bit position start, wrapping
// at Dimension.
func readBits(src *[Words]uint64, start, n int) uint64 {
	var result uint64
	for got := 0; got < n; {
		pos := start + got
		if pos >= Dimension {
			pos -= Dimension
		}
		wi, off := pos/64, pos%64
		avail := min(64-off, Dimension-pos, n-got)
		chunk := src[wi] >> uint(off)
		if avail < 64 {
			chunk &= (uint64(1) << uint(avail)) - 1
		}
		result |= chunk << uint(got)
		got += avail
	}
	return result
}

// Bundle returns the per-position majority vote of vs.
//
// With an even count, a position where exactly half the inputs are set
// resolves to 0. Bundle of a single vector returns that vector. An empty
// input is an encoding error.
func Bundle(vs ...Vector) (Vector, error) {
	if len(vs) == 0 {
		return Vector{}, errdefs.Encoding("bundle requires at least one vector")
	}
	if len(vs) == 1 {
		return vs[0], nil
	}
	acc := NewAccumulator()
	for _, v := range vs {
		acc.Add(v)
	}
	return acc.Finalize()
}

// WeightedBundle returns the weighted majority vote of vs: a bit is set
// when the summed weight of inputs with that bit set exceeds half the
// total weight. Weights must be non-negative and not all zero.
func WeightedBundle(vs []Vector, weights []float64) (Vector, error) {
	if len(vs) == 0 {
		return Vector{}, errdefs.Encoding("weighted bundle requires at least one vector")
	}
	if len(vs) != len(weights) {
		return Vector{}, errdefs.Encoding("got %d vectors but %d weights", len(vs), len(weights))
	}

	var total float64
	for _, w := range weights {
		if w < 0 {
			return Vector{}, errdefs.Encoding("negative bundle weight %g", w)
		}
		total += w
	}
	if total == 0 {
		return Vector{}, errdefs.Encoding("bundle weights sum to zero")
	}

	sums := make([]float64, Dimension)
	for i, v := range vs {
		w := weights[i]
		for wi, word := range v.words() {
			for word != 0 {
				tz := bits.TrailingZeros64(word)
				sums[wi*64+tz] += w
				word &= word - 1
			}
		}
	}

	out := new([Words]uint64)
	half := total / 2
	for i, s := range sums {
		if s > half {
			out[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return Vector{w: out}, nil
}

// Hamming returns the number of differing bits.
func Hamming(a, b Vector) int {
	return simd.HammingWords(a.words()[:], b.words()[:])
}

// Similarity returns 1 - Hamming(a, b)/Dimension in [0, 1].
// Unrelated random vectors score near 0.5.
func Similarity(a, b Vector) float64 {
	return 1 - float64(Hamming(a, b))/Dimension
}

// Cosine treats bits as bipolar {-1, +1} values and returns their cosine
// in [-1, 1].
func Cosine(a, b Vector) float64 {
	return 1 - 2*float64(Hamming(a, b))/Dimension
}

// Jaccard returns |a AND b| / |a OR b|. Two zero vectors score 1.
func Jaccard(a, b Vector) float64 {
	inter := simd.AndPopcountWords(a.words()[:], b.words()[:])
	union := a.Popcount() + b.Popcount() - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

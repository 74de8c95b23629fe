package simd

import "math/bits"

// ==============================================================================
// Bit-packed word kernels
// ==============================================================================
//
// Hypervectors are stored as []uint64 with bit i of the vector at
// word i/64, bit i%64. Every kernel here assumes len(a) == len(b).

// Kernel function pointers for word operations.
// Generic implementations are the default; platform-specific init()
// functions switch to the wide variants when a vector ISA is present.
var (
	kernelXorWords      = xorWordsGeneric
	kernelPopcountWords = popcountWordsGeneric
	kernelHammingWords  = hammingWordsGeneric
	kernelAndPopcount   = andPopcountGeneric
)

// XorWords performs dst[i] ^= src[i] for all words.
func XorWords(dst, src []uint64) {
	kernelXorWords(dst, src)
}

// PopcountWords counts all set bits across words.
func PopcountWords(words []uint64) int {
	return kernelPopcountWords(words)
}

// HammingWords returns popcount(a XOR b) without allocating.
func HammingWords(a, b []uint64) int {
	return kernelHammingWords(a, b)
}

// AndPopcountWords returns popcount(a AND b).
func AndPopcountWords(a, b []uint64) int {
	return kernelAndPopcount(a, b)
}

// AccumulateBits adds one to counts[i] for every set bit i in words.
// counts must cover len(words)*64 positions or the highest set bit.
func AccumulateBits(counts []uint32, words []uint64) {
	for w, word := range words {
		base := w * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			counts[base+tz]++
			word &= word - 1
		}
	}
}

// ==============================================================================
// Generic implementations
// ==============================================================================

func xorWordsGeneric(dst, src []uint64) {
	// Process 4 words at a time (unrolled)
	i := 0
	for ; i+4 <= len(dst); i += 4 {
		dst[i] ^= src[i]
		dst[i+1] ^= src[i+1]
		dst[i+2] ^= src[i+2]
		dst[i+3] ^= src[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] ^= src[i]
	}
}

func popcountWordsGeneric(words []uint64) int {
	count := 0
	i := 0
	for ; i+4 <= len(words); i += 4 {
		count += bits.OnesCount64(words[i])
		count += bits.OnesCount64(words[i+1])
		count += bits.OnesCount64(words[i+2])
		count += bits.OnesCount64(words[i+3])
	}
	for ; i < len(words); i++ {
		count += bits.OnesCount64(words[i])
	}
	return count
}

func hammingWordsGeneric(a, b []uint64) int {
	count := 0
	i := 0
	for ; i+4 <= len(a); i += 4 {
		count += bits.OnesCount64(a[i] ^ b[i])
		count += bits.OnesCount64(a[i+1] ^ b[i+1])
		count += bits.OnesCount64(a[i+2] ^ b[i+2])
		count += bits.OnesCount64(a[i+3] ^ b[i+3])
	}
	for ; i < len(a); i++ {
		count += bits.OnesCount64(a[i] ^ b[i])
	}
	return count
}

func andPopcountGeneric(a, b []uint64) int {
	count := 0
	for i := range a {
		count += bits.OnesCount64(a[i] & b[i])
	}
	return count
}

// ==============================================================================
// Wide implementations
// ==============================================================================
//
// Eight independent accumulators let the compiler keep the POPCNT/CNT
// pipeline full on cores with wide issue.

func popcountWordsWide(words []uint64) int {
	var c0, c1, c2, c3, c4, c5, c6, c7 int
	i := 0
	for ; i+8 <= len(words); i += 8 {
		c0 += bits.OnesCount64(words[i])
		c1 += bits.OnesCount64(words[i+1])
		c2 += bits.OnesCount64(words[i+2])
		c3 += bits.OnesCount64(words[i+3])
		c4 += bits.OnesCount64(words[i+4])
		c5 += bits.OnesCount64(words[i+5])
		c6 += bits.OnesCount64(words[i+6])
		c7 += bits.OnesCount64(words[i+7])
	}
	for ; i < len(words); i++ {
		c0 += bits.OnesCount64(words[i])
	}
	return c0 + c1 + c2 + c3 + c4 + c5 + c6 + c7
}

func hammingWordsWide(a, b []uint64) int {
	var c0, c1, c2, c3, c4, c5, c6, c7 int
	i := 0
	for ; i+8 <= len(a); i += 8 {
		c0 += bits.OnesCount64(a[i] ^ b[i])
		c1 += bits.OnesCount64(a[i+1] ^ b[i+1])
		c2 += bits.OnesCount64(a[i+2] ^ b[i+2])
		c3 += bits.OnesCount64(a[i+3] ^ b[i+3])
		c4 += bits.OnesCount64(a[i+4] ^ b[i+4])
		c5 += bits.OnesCount64(a[i+5] ^ b[i+5])
		c6 += bits.OnesCount64(a[i+6] ^ b[i+6])
		c7 += bits.OnesCount64(a[i+7] ^ b[i+7])
	}
	for ; i < len(a); i++ {
		c0 += bits.OnesCount64(a[i] ^ b[i])
	}
	return c0 + c1 + c2 + c3 + c4 + c5 + c6 + c7
}

// useWideKernels switches the kernel pointers; called from init once the
// active ISA is known.
func useWideKernels() {
	kernelPopcountWords = popcountWordsWide
	kernelHammingWords = hammingWordsWide
}

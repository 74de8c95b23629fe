// Package simd provides word-parallel kernels over bit-packed hypervectors.
//
// # Supported Platforms
//
//   - x86-64: AVX-512 VPOPCNTDQ, AVX2 (POPCNT required)
//   - ARM64: NEON, SVE2
//
// Runtime CPU feature detection (golang.org/x/sys/cpu) selects between the
// generic 4-way unrolled kernels and the wide 8-accumulator kernels. Set
// HDC_SIMD=generic to force the generic path.
//
// # Operations
//
//   - XorWords, PopcountWords, HammingWords, AndPopcountWords
//   - AccumulateBits for majority-vote counters
package simd

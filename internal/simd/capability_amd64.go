//go:build amd64

package simd

import "golang.org/x/sys/cpu"

func init() {
	setup(Features{
		POPCNT:       cpu.X86.HasPOPCNT,
		AVX2:         cpu.X86.HasAVX2,
		AVX512Popcnt: cpu.X86.HasAVX512F && cpu.X86.HasAVX512VPOPCNTDQ,
	})
}

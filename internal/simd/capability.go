package simd

import (
	"os"
	"runtime"
	"strings"
)

// ISA names the kernel family chosen for the running CPU.
type ISA uint8

const (
	// Generic is the 4-way unrolled pure Go path.
	Generic ISA = iota
	// NEON is arm64 with ASIMD CNT.
	NEON
	// SVE2 is arm64 with scalable vectors.
	SVE2
	// AVX2 is amd64 with AVX2 and hardware POPCNT.
	AVX2
	// AVX512 is amd64 with AVX-512 VPOPCNTDQ.
	AVX512
)

var isaNames = [...]string{
	Generic: "generic",
	NEON:    "neon",
	SVE2:    "sve2",
	AVX2:    "avx2",
	AVX512:  "avx512",
}

func (i ISA) String() string {
	if int(i) < len(isaNames) {
		return isaNames[i]
	}
	return "unknown"
}

// ParseISA parses the lower-case ISA name.
func ParseISA(s string) (ISA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range isaNames {
		if name == s {
			return ISA(i), true
		}
	}
	return Generic, false
}

// OverrideEnv names the environment variable that forces an ISA. An ISA
// the CPU lacks is ignored.
const OverrideEnv = "HDC_SIMD"

// Features are the CPU capabilities the popcount kernels care about.
type Features struct {
	POPCNT       bool
	AVX2         bool
	AVX512Popcnt bool
	ASIMD        bool
	SVE2         bool
}

// Supports reports whether isa can run with f.
func (f Features) Supports(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return f.ASIMD
	case SVE2:
		return f.SVE2
	case AVX2:
		return f.AVX2 && f.POPCNT
	case AVX512:
		return f.AVX512Popcnt && f.POPCNT
	default:
		return false
	}
}

// Best returns the widest ISA f supports on goos. SVE2 is skipped on
// darwin where it is emulated.
func (f Features) Best(goos string) ISA {
	for _, isa := range []ISA{AVX512, AVX2, SVE2, NEON} {
		if isa == SVE2 && goos == "darwin" {
			continue
		}
		if f.Supports(isa) {
			return isa
		}
	}
	return Generic
}

var (
	features    Features
	activeISA   ISA
	hasOverride bool
)

// choose resolves the active ISA from detected features and an override.
func choose(f Features, goos, override string) (ISA, bool) {
	if override != "" {
		if isa, ok := ParseISA(override); ok && f.Supports(isa) {
			return isa, true
		}
	}
	return f.Best(goos), false
}

// setup runs from the platform init once features are detected.
func setup(f Features) {
	features = f
	activeISA, hasOverride = choose(f, runtime.GOOS, os.Getenv(OverrideEnv))
	if activeISA != Generic {
		useWideKernels()
	}
}

// ActiveISA returns the ISA the kernels run with.
func ActiveISA() ISA { return activeISA }

// Detected returns the detected CPU features.
func Detected() Features { return features }

// IsOverridden reports whether HDC_SIMD picked the ISA.
func IsOverridden() bool { return hasOverride }

// HasVectorUnit reports whether a wide kernel family is active.
func HasVectorUnit() bool { return activeISA != Generic }

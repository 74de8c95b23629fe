package hypervector

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/luminous-dynamics/hdc/errdefs"
)

// SeedSize is the length of a Seed in bytes.
const SeedSize = 32

// Seed controls all pseudorandom generation. Vectors produced under
// different seeds are mutually incomparable; that coupling is the isolation
// boundary between deployments.
type Seed [SeedSize]byte

// SeedFromString derives a seed as SHA-256 of s.
func SeedFromString(s string) Seed {
	return Seed(sha256.Sum256([]byte(s)))
}

// SeedFromBytes copies exactly SeedSize bytes into a Seed.
func SeedFromBytes(b []byte) (Seed, error) {
	var s Seed
	if len(b) != SeedSize {
		return s, &errdefs.FormatError{
			Reason: fmt.Sprintf("seed must be %d bytes, got %d", SeedSize, len(b)),
		}
	}
	copy(s[:], b)
	return s, nil
}

// RandomSeed draws a seed from the operating system CSPRNG.
func RandomSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

// Fingerprint returns a short, non-reversible tag for logs. It never
// exposes the seed itself.
func (s Seed) Fingerprint() string {
	sum := sha256.Sum256(append([]byte("fingerprint:"), s[:]...))
	return hex.EncodeToString(sum[:4])
}

// expand fills out with SHA-256(seed || label || counter) blocks, counter
// little-endian u64 starting at zero.
func (s Seed) expand(label string, out []byte) {
	var ctr [8]byte
	h := sha256.New()
	var block [sha256.Size]byte
	for off, i := 0, uint64(0); off < len(out); i++ {
		h.Reset()
		h.Write(s[:])
		h.Write([]byte(label))
		binary.LittleEndian.PutUint64(ctr[:], i)
		h.Write(ctr[:])
		off += copy(out[off:], h.Sum(block[:0]))
	}
}

package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/luminous-dynamics/hdc/hypervector"
)

const nucleotides = "ACGT"

// RNG wraps a seeded math/rand source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Sequence returns a random ACGT sequence of length n.
func (r *RNG) Sequence(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = nucleotides[r.rand.Intn(4)]
	}
	return string(b)
}

// Mutate returns seq with n point substitutions at distinct positions.
// Each substitution picks a different nucleotide.
func (r *RNG) Mutate(seq string, n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := []byte(seq)
	for _, pos := range r.rand.Perm(len(b))[:min(n, len(b))] {
		for {
			c := nucleotides[r.rand.Intn(4)]
			if c != b[pos] {
				b[pos] = c
				break
			}
		}
	}
	return string(b)
}

// Vector returns a uniformly random hypervector.
func (r *RNG) Vector() hypervector.Vector {
	r.mu.Lock()
	words := make([]uint64, hypervector.Words)
	for i := range words {
		words[i] = r.rand.Uint64()
	}
	r.mu.Unlock()
	v, err := hypervector.FromWords(words)
	if err != nil {
		panic(err)
	}
	return v
}

// Vectors returns n random hypervectors.
func (r *RNG) Vectors(n int) []hypervector.Vector {
	out := make([]hypervector.Vector, n)
	for i := range out {
		out[i] = r.Vector()
	}
	return out
}

// FlipBits returns v with n distinct random bits inverted, giving a
// vector at similarity exactly 1 - n/Dimension.
func (r *RNG) FlipBits(v hypervector.Vector, n int) hypervector.Vector {
	r.mu.Lock()
	positions := r.rand.Perm(hypervector.Dimension)[:n]
	r.mu.Unlock()
	for _, p := range positions {
		v = v.WithBit(p, !v.Bit(p))
	}
	return v
}

// Variant is one VCF data line for fixtures.
type Variant struct {
	Chrom  string
	Pos    int
	Ref    string
	Alt    string
	Filter string
	GT     string
}

// Variants returns n distinct random variants spread over chroms, sorted
// by chromosome and position. Genotypes cycle through 0/1, 1/1 and 0|1.
func (r *RNG) Variants(n int, chroms ...string) []Variant {
	if len(chroms) == 0 {
		chroms = []string{"chr1"}
	}
	gts := []string{"0/1", "1/1", "0|1"}

	r.mu.Lock()
	seen := make(map[string]bool, n)
	out := make([]Variant, 0, n)
	for len(out) < n {
		chrom := chroms[r.rand.Intn(len(chroms))]
		pos := 1 + r.rand.Intn(10_000_000)
		key := fmt.Sprintf("%s:%d", chrom, pos)
		if seen[key] {
			continue
		}
		seen[key] = true
		ref := nucleotides[r.rand.Intn(4)]
		alt := nucleotides[(strings.IndexByte(nucleotides, ref)+1+r.rand.Intn(3))%4]
		out = append(out, Variant{
			Chrom:  chrom,
			Pos:    pos,
			Ref:    string(ref),
			Alt:    string(alt),
			Filter: "PASS",
			GT:     gts[len(out)%len(gts)],
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Chrom != out[j].Chrom {
			return out[i].Chrom < out[j].Chrom
		}
		return out[i].Pos < out[j].Pos
	})
	return out
}

// BuildVCF renders a single-sample VCF 4.2 document.
func BuildVCF(sample string, variants []Variant) string {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("##source=testutil\n")
	fmt.Fprintf(&b, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", sample)
	for _, v := range variants {
		filter := v.Filter
		if filter == "" {
			filter = "PASS"
		}
		fmt.Fprintf(&b, "%s\t%d\t.\t%s\t%s\t50\t%s\t.\tGT\t%s\n", v.Chrom, v.Pos, v.Ref, v.Alt, filter, v.GT)
	}
	return b.String()
}

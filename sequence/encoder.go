// Package sequence encodes DNA and RNA sequences as hypervectors.
//
// A sequence of length n yields n-k+1 overlapping k-mers. Each k-mer's
// codebook vector is rotated by its offset and the rotated vectors are
// bundled, so the encoding keeps both composition and order.
package sequence

import (
	"strings"
	"time"

	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Encoded is the result of encoding one sequence.
type Encoded struct {
	Vector hypervector.Vector `json:"vector"`

	// K is the k-mer length used.
	K int `json:"k"`

	// Length is the normalized sequence length.
	Length int `json:"length"`

	// KmerCount is the number of k-mers bundled.
	KmerCount int `json:"kmer_count"`

	// WildcardCount is the number of characters mapped to N.
	WildcardCount int `json:"wildcard_count,omitempty"`

	SourceID  string    `json:"source_id,omitempty"`
	EncodedAt time.Time `json:"encoded_at"`
}

// Encoder encodes sequences. It is safe for concurrent use.
type Encoder struct {
	opts Options
	cb   codebook.Source
}

// NewEncoder returns an encoder whose default codebook derives from seed.
func NewEncoder(seed hypervector.Seed, optFns ...func(*Options)) (*Encoder, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cb := opts.Codebook
	if cb == nil {
		cb = codebook.NewProcedural(seed)
	}
	return &Encoder{opts: opts, cb: cb}, nil
}

// K returns the configured k-mer length.
func (e *Encoder) K() int { return e.opts.K }

// Options returns the effective options.
func (e *Encoder) Options() Options { return e.opts }

// Encode encodes seq. Input is uppercased; the result is deterministic
// for a given seed and codebook.
func (e *Encoder) Encode(seq string) (Encoded, error) {
	return e.EncodeWithID("", seq)
}

// EncodeWithID encodes seq and tags the result with id.
func (e *Encoder) EncodeWithID(id, seq string) (Encoded, error) {
	norm, wildcards, err := e.normalize(seq)
	if err != nil {
		return Encoded{}, err
	}
	v, n, err := e.encodeK(norm, e.opts.K)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{
		Vector:        v,
		K:             e.opts.K,
		Length:        len(norm),
		KmerCount:     n,
		WildcardCount: wildcards,
		SourceID:      id,
		EncodedAt:     time.Now().UTC(),
	}, nil
}

// normalize uppercases seq, maps U to T in RNA mode and applies the
// alphabet policy. It returns the normalized sequence and the number of
// characters replaced by N.
func (e *Encoder) normalize(seq string) (string, int, error) {
	if seq == "" {
		return "", 0, errdefs.Encoding("empty sequence")
	}
	var b strings.Builder
	b.Grow(len(seq))
	wildcards := 0
	for i, r := range strings.ToUpper(seq) {
		switch r {
		case 'A', 'C', 'G', 'T':
			b.WriteRune(r)
		case 'U':
			if e.opts.RNA {
				b.WriteByte('T')
				continue
			}
			fallthrough
		default:
			if e.opts.Policy == PolicyReject {
				return "", 0, errdefs.Encoding("invalid nucleotide %q at offset %d", r, i)
			}
			b.WriteByte('N')
			wildcards++
		}
	}
	return b.String(), wildcards, nil
}

func (e *Encoder) encodeK(seq string, k int) (hypervector.Vector, int, error) {
	if len(seq) < k {
		return hypervector.Vector{}, 0, errdefs.Encoding("sequence length %d is shorter than k=%d", len(seq), k)
	}
	n := len(seq) - k + 1
	acc := hypervector.NewAccumulator()
	for i := range n {
		item, err := e.cb.Get(seq[i : i+k])
		if err != nil {
			return hypervector.Vector{}, 0, err
		}
		acc.Add(hypervector.Permute(item, i))
	}
	v, err := acc.Finalize()
	return v, n, err
}

// GCContent returns the fraction of G and C among the characters of seq,
// case-insensitively. An empty sequence has GC content 0.
func GCContent(seq string) float64 {
	if seq == "" {
		return 0
	}
	gc, total := 0, 0
	for _, r := range seq {
		switch r {
		case 'G', 'C', 'g', 'c':
			gc++
		}
		total++
	}
	return float64(gc) / float64(total)
}

package hla

import (
	"sort"

	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Score blend between exact allele matching and vector similarity.
const (
	ExactWeight  = 0.8
	VectorWeight = 0.2
)

// Options configures an Encoder.
type Options struct {
	Weights Weights

	// Codebook resolves allele symbols. Nil uses a procedural codebook on
	// the encoder seed.
	Codebook codebook.Source
}

// WithWeights overrides the locus weights.
func WithWeights(w Weights) func(*Options) {
	return func(o *Options) { o.Weights = w }
}

// WithCodebook overrides the codebook.
func WithCodebook(cb codebook.Source) func(*Options) {
	return func(o *Options) { o.Codebook = cb }
}

// Typing is an encoded HLA typing.
type Typing struct {
	Alleles [NumAlleles]Allele         `json:"alleles"`
	Loci    [NumLoci]hypervector.Vector `json:"loci"`

	// Vector bundles the five locus vectors, for storage and coarse search.
	Vector hypervector.Vector `json:"vector"`
}

// Encoder encodes typings. It is safe for concurrent use.
type Encoder struct {
	weights Weights
	cb      codebook.Source
}

// NewEncoder returns an encoder whose default codebook derives from seed.
func NewEncoder(seed hypervector.Seed, optFns ...func(*Options)) (*Encoder, error) {
	opts := Options{Weights: DefaultWeights()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	cb := opts.Codebook
	if cb == nil {
		cb = codebook.NewProcedural(seed)
	}
	return &Encoder{weights: opts.Weights, cb: codebook.Namespace(cb, "HLA-")}, nil
}

// Weights returns the encoder's locus weights.
func (e *Encoder) Weights() Weights { return e.weights }

// Encode encodes exactly ten alleles ordered A, A, B, B, C, C, DRB1,
// DRB1, DQB1, DQB1.
func (e *Encoder) Encode(alleles []string) (Typing, error) {
	if len(alleles) != NumAlleles {
		return Typing{}, errdefs.Encoding("expected exactly %d HLA alleles (2 per locus for A, B, C, DRB1, DQB1), got %d", NumAlleles, len(alleles))
	}

	var t Typing
	for i, s := range alleles {
		a, err := ParseAllele(s)
		if err != nil {
			return Typing{}, err
		}
		if want := Loci[i/2]; a.Locus != want {
			return Typing{}, errdefs.Encoding("allele %d (%s) should be at locus %s", i+1, a.Name, want)
		}
		t.Alleles[i] = a
	}

	for li, l := range Loci {
		v1, err := e.cb.Get(l.String() + ":" + t.Alleles[2*li].Name)
		if err != nil {
			return Typing{}, err
		}
		v2, err := e.cb.Get(l.String() + ":" + t.Alleles[2*li+1].Name)
		if err != nil {
			return Typing{}, err
		}
		if t.Loci[li], err = hypervector.Bundle(v1, v2); err != nil {
			return Typing{}, err
		}
	}

	var err error
	if t.Vector, err = hypervector.Bundle(t.Loci[:]...); err != nil {
		return Typing{}, err
	}
	return t, nil
}

// LocusMatch is the comparison of one locus.
type LocusMatch struct {
	Locus      Locus   `json:"locus"`
	Weight     float64 `json:"weight"`
	Matches    int     `json:"matches"`
	Similarity float64 `json:"similarity"`
}

// Compatibility is a scored donor/recipient comparison in [0, 1].
type Compatibility struct {
	Score       float64             `json:"score"`
	ExactScore  float64             `json:"exact_score"`
	VectorScore float64             `json:"vector_score"`
	Loci        [NumLoci]LocusMatch `json:"loci"`
}

// Mismatches returns the number of mismatched alleles across all loci.
func (c Compatibility) Mismatches() int {
	n := 0
	for _, l := range c.Loci {
		n += 2 - l.Matches
	}
	return n
}

// exactMatches pairs the two alleles of each side to maximize identical
// names, so a homozygous donor matches a heterozygous recipient once.
func exactMatches(r1, r2, d1, d2 string) int {
	eq := func(a, b string) int {
		if a == b {
			return 1
		}
		return 0
	}
	return max(eq(r1, d1)+eq(r2, d2), eq(r1, d2)+eq(r2, d1))
}

// Compatibility scores donor against recipient. The exact component is
// Σ w·matches/2 / Σ w; the vector component is Σ w·max(0, 2·sim−1) / Σ w;
// the score is 0.8·exact + 0.2·vector.
func (e *Encoder) Compatibility(recipient, donor Typing) Compatibility {
	var c Compatibility
	var exact, vec float64
	total := e.weights.Total()
	for li, l := range Loci {
		w := e.weights.Of(l)
		m := exactMatches(
			recipient.Alleles[2*li].Name, recipient.Alleles[2*li+1].Name,
			donor.Alleles[2*li].Name, donor.Alleles[2*li+1].Name,
		)
		sim := hypervector.Similarity(recipient.Loci[li], donor.Loci[li])
		c.Loci[li] = LocusMatch{Locus: l, Weight: w, Matches: m, Similarity: sim}

		exact += w * float64(m) / 2
		vec += w * max(0, 2*sim-1)
	}
	c.ExactScore = exact / total
	c.VectorScore = vec / total
	c.Score = ExactWeight*c.ExactScore + VectorWeight*c.VectorScore
	return c
}

// MatchScore encodes both typings and returns their compatibility score.
func (e *Encoder) MatchScore(recipient, donor []string) (float64, error) {
	r, err := e.Encode(recipient)
	if err != nil {
		return 0, err
	}
	d, err := e.Encode(donor)
	if err != nil {
		return 0, err
	}
	return e.Compatibility(r, d).Score, nil
}

// Donor is a candidate in a donor pool.
type Donor struct {
	ID      string   `json:"id"`
	Alleles []string `json:"alleles"`
}

// Match is a ranked donor.
type Match struct {
	DonorID       string        `json:"donor_id"`
	Index         int           `json:"index"`
	Score         float64       `json:"score"`
	Compatibility Compatibility `json:"compatibility"`
}

// Ranking is the outcome of FindBestMatches. Donors whose typing cannot
// be encoded are listed in Invalid by pool index and never ranked.
type Ranking struct {
	Matches []Match `json:"matches"`
	Invalid []int   `json:"invalid,omitempty"`
}

// FindBestMatches ranks donors by compatibility with recipient, highest
// first, ties broken by pool order. topK <= 0 keeps every donor. An
// invalid recipient typing is an error.
func (e *Encoder) FindBestMatches(recipient []string, donors []Donor, topK int) (Ranking, error) {
	r, err := e.Encode(recipient)
	if err != nil {
		return Ranking{}, err
	}

	var out Ranking
	for i, d := range donors {
		dt, err := e.Encode(d.Alleles)
		if err != nil {
			out.Invalid = append(out.Invalid, i)
			continue
		}
		c := e.Compatibility(r, dt)
		out.Matches = append(out.Matches, Match{DonorID: d.ID, Index: i, Score: c.Score, Compatibility: c})
	}

	sort.SliceStable(out.Matches, func(i, j int) bool {
		return out.Matches[i].Score > out.Matches[j].Score
	})
	if topK > 0 && len(out.Matches) > topK {
		out.Matches = out.Matches[:topK]
	}
	return out, nil
}

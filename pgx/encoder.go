// Package pgx encodes pharmacogenomic star-allele diplotypes and derives
// metabolizer phenotypes, drug recommendations and ancestry-informed
// dosing guidance from injected clinical tables.
//
// A diplotype is encoded as the bundle of Bind(gene, allele) for both
// alleles, so the same two calls in either order produce the same vector.
// Lookups fail closed: an allele, gene or drug missing from the tables is
// an UnknownSymbolError, never a default activity.
package pgx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Options configures an Encoder.
type Options struct {
	// Tables supplies allele activities and drug rules. Nil uses DefaultTables.
	Tables *Tables

	// Codebook resolves gene and allele symbols. Nil uses a procedural
	// codebook on the encoder seed.
	Codebook codebook.Source
}

// WithTables injects clinical tables.
func WithTables(t *Tables) func(*Options) {
	return func(o *Options) { o.Tables = t }
}

// WithCodebook overrides the codebook.
func WithCodebook(cb codebook.Source) func(*Options) {
	return func(o *Options) { o.Codebook = cb }
}

// Call is an unencoded diplotype call.
type Call struct {
	Gene    string `json:"gene" yaml:"gene"`
	Allele1 string `json:"allele1" yaml:"allele1"`
	Allele2 string `json:"allele2" yaml:"allele2"`
}

// ParseCall parses "CYP2D6 *1/*4" or "CYP2D6*1/*4".
func ParseCall(s string) (Call, error) {
	s = strings.TrimSpace(s)
	gene, rest, ok := strings.Cut(s, " ")
	if !ok {
		i := strings.IndexByte(s, '*')
		if i <= 0 {
			return Call{}, &errdefs.FormatError{Source: "diplotype", Reason: fmt.Sprintf("cannot parse %q", s)}
		}
		gene, rest = s[:i], s[i:]
	}
	a1, a2, ok := strings.Cut(strings.TrimSpace(rest), "/")
	if !ok || a1 == "" || a2 == "" {
		return Call{}, &errdefs.FormatError{Source: "diplotype", Reason: fmt.Sprintf("expected two alleles in %q", s)}
	}
	return Call{Gene: gene, Allele1: a1, Allele2: a2}, nil
}

// Diplotype is an encoded diplotype. Allele1 sorts before Allele2.
type Diplotype struct {
	Vector        hypervector.Vector `json:"vector"`
	Gene          string             `json:"gene"`
	Allele1       string             `json:"allele1"`
	Allele2       string             `json:"allele2"`
	ActivityScore float64            `json:"activity_score"`
	Phenotype     Phenotype          `json:"phenotype"`
}

// Notation returns the conventional form, e.g. "CYP2D6 *1/*4".
func (d Diplotype) Notation() string {
	return d.Gene + " " + d.Allele1 + "/" + d.Allele2
}

// Encoder encodes diplotypes and profiles. It is safe for concurrent use.
type Encoder struct {
	tables *Tables
	gene   codebook.Source
	allele codebook.Source
}

// NewEncoder returns an encoder whose default codebook derives from seed.
func NewEncoder(seed hypervector.Seed, optFns ...func(*Options)) (*Encoder, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	tables := opts.Tables
	if tables == nil {
		tables = DefaultTables()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	cb := opts.Codebook
	if cb == nil {
		cb = codebook.NewProcedural(seed)
	}
	return &Encoder{
		tables: tables,
		gene:   codebook.Namespace(cb, "GENE:"),
		allele: codebook.Namespace(cb, "STAR:"),
	}, nil
}

// Tables returns the encoder's clinical tables.
func (e *Encoder) Tables() *Tables { return e.tables }

// EncodeDiplotype encodes one gene call.
func (e *Encoder) EncodeDiplotype(gene, allele1, allele2 string) (Diplotype, error) {
	g, err := e.tables.Gene(gene)
	if err != nil {
		return Diplotype{}, err
	}
	if alleleLess(allele2, allele1) {
		allele1, allele2 = allele2, allele1
	}
	v1, err := e.tables.AlleleActivity(gene, allele1)
	if err != nil {
		return Diplotype{}, err
	}
	v2, err := e.tables.AlleleActivity(gene, allele2)
	if err != nil {
		return Diplotype{}, err
	}

	gv, err := e.gene.Get(gene)
	if err != nil {
		return Diplotype{}, err
	}
	h1, err := e.allele.Get(gene + ":" + allele1)
	if err != nil {
		return Diplotype{}, err
	}
	h2, err := e.allele.Get(gene + ":" + allele2)
	if err != nil {
		return Diplotype{}, err
	}
	vec, err := hypervector.Bundle(hypervector.Bind(gv, h1), hypervector.Bind(gv, h2))
	if err != nil {
		return Diplotype{}, err
	}

	score := g.Activity(v1, v2)
	return Diplotype{
		Vector:        vec,
		Gene:          gene,
		Allele1:       allele1,
		Allele2:       allele2,
		ActivityScore: score,
		Phenotype:     g.Phenotype(score),
	}, nil
}

// Profile is the bundle of a patient's diplotypes.
type Profile struct {
	Vector     hypervector.Vector `json:"vector"`
	Diplotypes []Diplotype        `json:"diplotypes"`
	Ancestry   Ancestry           `json:"ancestry"`
}

// EncodeProfile encodes every call and bundles the results. Each gene may
// appear at most once.
func (e *Encoder) EncodeProfile(calls []Call) (Profile, error) {
	if len(calls) == 0 {
		return Profile{}, errdefs.Encoding("profile requires at least one diplotype")
	}
	seen := make(map[string]struct{}, len(calls))
	diplotypes := make([]Diplotype, 0, len(calls))
	vectors := make([]hypervector.Vector, 0, len(calls))
	for _, c := range calls {
		if _, dup := seen[c.Gene]; dup {
			return Profile{}, errdefs.Encoding("gene %s called more than once", c.Gene)
		}
		seen[c.Gene] = struct{}{}

		d, err := e.EncodeDiplotype(c.Gene, c.Allele1, c.Allele2)
		if err != nil {
			return Profile{}, fmt.Errorf("encode %s: %w", c.Gene, err)
		}
		diplotypes = append(diplotypes, d)
		vectors = append(vectors, d.Vector)
	}
	vec, err := hypervector.Bundle(vectors...)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Vector: vec, Diplotypes: diplotypes}, nil
}

// Diplotype returns the diplotype for gene.
func (p Profile) Diplotype(gene string) (Diplotype, bool) {
	for _, d := range p.Diplotypes {
		if d.Gene == gene {
			return d, true
		}
	}
	return Diplotype{}, false
}

// PoorMetabolizerGenes lists genes with a Poor phenotype, in profile order.
func (p Profile) PoorMetabolizerGenes() []string {
	var out []string
	for _, d := range p.Diplotypes {
		if d.Phenotype == Poor {
			out = append(out, d.Gene)
		}
	}
	return out
}

// GeneSimilarity compares the diplotype vectors of genes present in both
// profiles.
func (p Profile) GeneSimilarity(other Profile) map[string]float64 {
	out := make(map[string]float64)
	for _, d := range p.Diplotypes {
		if o, ok := other.Diplotype(d.Gene); ok {
			out[d.Gene] = hypervector.Similarity(d.Vector, o.Vector)
		}
	}
	return out
}

// Summary renders one line per gene, e.g. "CYP2D6 *1/*4: Intermediate
// Metabolizer (activity 1.00)".
func (p Profile) Summary() string {
	var b strings.Builder
	for i, d := range p.Diplotypes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s (activity %.2f)", d.Notation(), d.Phenotype, d.ActivityScore)
	}
	return b.String()
}

// alleleLess orders star alleles numerically ("*2" < "*10"), then
// lexically for suffixes and non-star names.
func alleleLess(a, b string) bool {
	na, ra, oka := starNumber(a)
	nb, rb, okb := starNumber(b)
	switch {
	case oka && okb && na != nb:
		return na < nb
	case oka && okb:
		return ra < rb
	case oka != okb:
		return oka
	default:
		return a < b
	}
}

func starNumber(s string) (int, string, bool) {
	if !strings.HasPrefix(s, "*") {
		return 0, "", false
	}
	digits := s[1:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(digits[:end])
	if err != nil {
		return 0, "", false
	}
	return n, digits[end:], true
}

func sortedUnique(ss []string) []string {
	sort.Strings(ss)
	out := ss[:0]
	for i, s := range ss {
		if i == 0 || s != ss[i-1] {
			out = append(out, s)
		}
	}
	return out
}

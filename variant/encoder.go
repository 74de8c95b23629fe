// Package variant encodes called variants from VCF files.
//
// Each variant becomes Bind(locus, allele, genotype) over namespaced
// codebook entries. Variants are bundled per chromosome through
// hypervector.Accumulator, so large files can be split into chunks,
// encoded by independent workers and merged without changing the result.
package variant

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Options configures an Encoder.
type Options struct {
	// BucketSize groups positions into loci: bucket = pos / BucketSize.
	// The default of 1 makes every position its own locus.
	BucketSize uint64

	// Codebook resolves locus, allele and genotype symbols. Nil uses a
	// procedural codebook on the encoder seed.
	Codebook codebook.Source
}

// WithBucketSize sets the locus bucket width.
func WithBucketSize(n uint64) func(*Options) {
	return func(o *Options) { o.BucketSize = n }
}

// WithCodebook overrides the codebook.
func WithCodebook(cb codebook.Source) func(*Options) {
	return func(o *Options) { o.Codebook = cb }
}

// Encoded is the encoding of a single variant.
type Encoded struct {
	Vector hypervector.Vector `json:"vector"`
	Chrom  string             `json:"chrom"`
	Pos    uint64             `json:"pos"`
	Key    string             `json:"key"`
}

// Encoder encodes records. It is safe for concurrent use.
type Encoder struct {
	bucket uint64
	locus  codebook.Source
	allele codebook.Source
	gt     codebook.Source
}

// NewEncoder returns an encoder whose default codebook derives from seed.
func NewEncoder(seed hypervector.Seed, optFns ...func(*Options)) (*Encoder, error) {
	opts := Options{BucketSize: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BucketSize == 0 {
		return nil, errdefs.Configuration("bucket_size", "must be > 0")
	}
	cb := opts.Codebook
	if cb == nil {
		cb = codebook.NewProcedural(seed)
	}
	return &Encoder{
		bucket: opts.BucketSize,
		locus:  codebook.Namespace(cb, "LOCUS:"),
		allele: codebook.Namespace(cb, "ALLELE:"),
		gt:     codebook.Namespace(cb, "GT:"),
	}, nil
}

// Encode returns the vector for rec. ok is false when the genotype is
// missing or absent; such records carry no signal and are skipped.
func (e *Encoder) Encode(rec Record) (enc Encoded, ok bool, err error) {
	code, ok := rec.Genotype.Code()
	if !ok {
		return Encoded{}, false, nil
	}

	bucket := strconv.FormatUint(rec.Pos/e.bucket, 10)
	locus, err := e.locus.Get(rec.Chrom + ":" + bucket)
	if err != nil {
		return Encoded{}, false, err
	}
	allele, err := e.allele.Get(rec.AlleleSymbol())
	if err != nil {
		return Encoded{}, false, err
	}
	gt, err := e.gt.Get(code)
	if err != nil {
		return Encoded{}, false, err
	}

	return Encoded{
		Vector: hypervector.Bind(hypervector.Bind(locus, allele), gt),
		Chrom:  rec.Chrom,
		Pos:    rec.Pos,
		Key:    fmt.Sprintf("%s:%d:%s:%s", rec.Chrom, rec.Pos, rec.AlleleSymbol(), code),
	}, true, nil
}

// Partial is the mergeable state of an in-progress encoding: one
// accumulator per chromosome plus counters. The zero value is not
// usable; call NewPartial.
type Partial struct {
	chroms   map[string]*hypervector.Accumulator
	variants int
	skipped  int
	filtered int
}

// NewPartial returns an empty partial.
func NewPartial() *Partial {
	return &Partial{chroms: make(map[string]*hypervector.Accumulator)}
}

// Add folds rec into p. passOnly drops records whose FILTER is not PASS.
func (p *Partial) Add(e *Encoder, rec Record, passOnly bool) error {
	if passOnly && !rec.Passed() {
		p.filtered++
		return nil
	}
	enc, ok, err := e.Encode(rec)
	if err != nil {
		return err
	}
	if !ok {
		p.skipped++
		return nil
	}
	acc := p.chroms[enc.Chrom]
	if acc == nil {
		acc = hypervector.NewAccumulator()
		p.chroms[enc.Chrom] = acc
	}
	acc.Add(enc.Vector)
	p.variants++
	return nil
}

// Merge folds other into p.
func (p *Partial) Merge(other *Partial) {
	for chrom, acc := range other.chroms {
		if mine := p.chroms[chrom]; mine != nil {
			mine.Merge(acc)
		} else {
			p.chroms[chrom] = acc.Clone()
		}
	}
	p.variants += other.variants
	p.skipped += other.skipped
	p.filtered += other.filtered
}

// Variants returns the number of encoded variants.
func (p *Partial) Variants() int { return p.variants }

// Chromosomes returns the chromosomes seen, sorted.
func (p *Partial) Chromosomes() []string {
	out := make([]string, 0, len(p.chroms))
	for c := range p.chroms {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Accumulator returns a copy of the accumulator for chrom, or nil.
func (p *Partial) Accumulator(chrom string) *hypervector.Accumulator {
	if acc := p.chroms[chrom]; acc != nil {
		return acc.Clone()
	}
	return nil
}

// finalize collapses the accumulators into result vectors. The genome
// vector is the bundle of every variant, i.e. the merge of all
// chromosome accumulators.
func (p *Partial) finalize(res *WGSResult) error {
	res.ChromosomeVectors = make(map[string]hypervector.Vector, len(p.chroms))
	genome := hypervector.NewAccumulator()
	for chrom, acc := range p.chroms {
		v, err := acc.Finalize()
		if err != nil {
			return err
		}
		res.ChromosomeVectors[chrom] = v
		genome.Merge(acc)
	}
	if genome.Count() > 0 {
		v, err := genome.Finalize()
		if err != nil {
			return err
		}
		res.GenomeVector = v
	}
	res.TotalVariants = p.variants
	res.Skipped = p.skipped
	res.Filtered = p.filtered
	res.partial = p
	return nil
}

// EncodeRecords encodes an in-memory record set. Unlike streaming, it
// fails with an EncodingError when no record carries a genotype.
func (e *Encoder) EncodeRecords(recs []Record, passOnly bool) (*WGSResult, error) {
	p := NewPartial()
	for _, rec := range recs {
		if err := p.Add(e, rec, passOnly); err != nil {
			return nil, err
		}
	}
	if p.variants == 0 {
		return nil, errdefs.Encoding("no variants with a called genotype")
	}
	res := &WGSResult{}
	if err := p.finalize(res); err != nil {
		return nil, err
	}
	return res, nil
}

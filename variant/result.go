package variant

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// LineError is a per-line failure recorded during streaming.
type LineError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Stats describes a streaming run.
type Stats struct {
	ProcessingTime  time.Duration `json:"processing_time"`
	ErrorCount      int           `json:"error_count"`
	ChunksProcessed int           `json:"chunks_processed"`
	LinesRead       int           `json:"lines_read"`
	RecordsRead     int           `json:"records_read"`
}

// WGSResult is the outcome of encoding one VCF.
type WGSResult struct {
	Sample            string                        `json:"sample,omitempty"`
	ChromosomeVectors map[string]hypervector.Vector `json:"chromosome_vectors"`

	// GenomeVector bundles every encoded variant. It is the zero vector
	// when nothing was encoded.
	GenomeVector hypervector.Vector `json:"genome_vector"`

	TotalVariants int `json:"total_variants"`
	// Skipped counts records with a missing or absent genotype.
	Skipped int `json:"skipped"`
	// Filtered counts records dropped by PassOnly.
	Filtered int `json:"filtered"`

	// Errors holds the first recorded lines that were malformed or could
	// not be encoded, by line number; Stats.ErrorCount has the full count
	// and ErrorLines every line number.
	Errors     []LineError     `json:"errors,omitempty"`
	ErrorLines *roaring.Bitmap `json:"-"`
	Stats      Stats           `json:"stats"`

	partial *Partial
}

// Chromosomes returns the encoded chromosomes, sorted.
func (r *WGSResult) Chromosomes() []string {
	if r.partial == nil {
		return nil
	}
	return r.partial.Chromosomes()
}

// Accumulator returns a copy of the per-chromosome accumulator, for
// persisting partial results with MarshalBinary and merging later.
func (r *WGSResult) Accumulator(chrom string) *hypervector.Accumulator {
	if r.partial == nil {
		return nil
	}
	return r.partial.Accumulator(chrom)
}

// MergeResults combines results of disjoint inputs (for example one VCF
// per chromosome) as if they had been streamed together.
func MergeResults(results ...*WGSResult) (*WGSResult, error) {
	if len(results) == 0 {
		return nil, errdefs.Encoding("no results to merge")
	}
	p := NewPartial()
	out := &WGSResult{ErrorLines: roaring.New()}
	for _, r := range results {
		if r.partial != nil {
			p.Merge(r.partial)
		}
		if out.Sample == "" {
			out.Sample = r.Sample
		}
		out.Errors = append(out.Errors, r.Errors...)
		if r.ErrorLines != nil {
			out.ErrorLines.Or(r.ErrorLines)
		}
		out.Stats.ProcessingTime += r.Stats.ProcessingTime
		out.Stats.ErrorCount += r.Stats.ErrorCount
		out.Stats.ChunksProcessed += r.Stats.ChunksProcessed
		out.Stats.LinesRead += r.Stats.LinesRead
		out.Stats.RecordsRead += r.Stats.RecordsRead
	}
	if err := p.finalize(out); err != nil {
		return nil, err
	}
	return out, nil
}

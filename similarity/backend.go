// Package similarity compares hypervectors at scale.
//
// All comparisons go through a Backend. The CPU backend evaluates one
// query at a time with word-parallel XOR and popcount. The Accelerated
// backend follows the device-kernel contract of a GPU engine: the
// database is packed into one contiguous buffer, tiles of
// (query, database range) are evaluated in parallel and scores are
// produced in single precision, flattened query-major. Callers are
// backend-agnostic: Select probes the accelerated backend against the
// CPU and only returns it when every score agrees within Tolerance.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/internal/simd"
	"golang.org/x/sync/errgroup"
)

// Backend computes the similarity of one query to every database vector.
// Scores are index-aligned with database.
type Backend interface {
	Name() string
	BatchSimilarity(ctx context.Context, query hypervector.Vector, database []hypervector.Vector) ([]float64, error)
}

// ctxCheckInterval is how many comparisons run between context checks.
const ctxCheckInterval = 1024

// ── CPU ─────────────────────────────────────────────────────────────────────

// CPU is the reference backend.
type CPU struct{}

// NewCPU returns the CPU backend.
func NewCPU() *CPU { return &CPU{} }

// Name returns "cpu".
func (*CPU) Name() string { return "cpu" }

// BatchSimilarity implements Backend.
func (*CPU) BatchSimilarity(ctx context.Context, query hypervector.Vector, database []hypervector.Vector) ([]float64, error) {
	out := make([]float64, len(database))
	for i, v := range database {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = hypervector.Similarity(query, v)
	}
	return out, nil
}

// ── Accelerated ─────────────────────────────────────────────────────────────

const (
	// DefaultTileSize is the number of database vectors per work item.
	DefaultTileSize = 256

	// DefaultTolerance is the largest score difference from the CPU
	// backend Select accepts.
	DefaultTolerance = 1e-6
)

// AcceleratedOptions configures an Accelerated backend.
type AcceleratedOptions struct {
	// TileSize is the number of database vectors per tile.
	TileSize int

	// Workers bounds concurrently evaluated tiles. Defaults to GOMAXPROCS.
	Workers int
}

// WithTileSize sets the tile size.
func WithTileSize(n int) func(*AcceleratedOptions) {
	return func(o *AcceleratedOptions) { o.TileSize = n }
}

// WithWorkers sets the tile concurrency.
func WithWorkers(n int) func(*AcceleratedOptions) {
	return func(o *AcceleratedOptions) { o.Workers = n }
}

// Accelerated evaluates tiles in parallel with single-precision output.
type Accelerated struct {
	opts AcceleratedOptions
	isa  simd.ISA
}

// NewAccelerated returns an accelerated backend. It works on any CPU;
// Select decides whether it is worth using.
func NewAccelerated(optFns ...func(*AcceleratedOptions)) *Accelerated {
	opts := AcceleratedOptions{TileSize: DefaultTileSize, Workers: runtime.GOMAXPROCS(0)}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TileSize <= 0 {
		opts.TileSize = DefaultTileSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Accelerated{opts: opts, isa: simd.ActiveISA()}
}

// Name returns "accelerated/<isa>".
func (a *Accelerated) Name() string { return "accelerated/" + a.isa.String() }

// BatchSimilarity implements Backend.
func (a *Accelerated) BatchSimilarity(ctx context.Context, query hypervector.Vector, database []hypervector.Vector) ([]float64, error) {
	scores, err := a.Scores(ctx, []hypervector.Vector{query}, database)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = float64(s)
	}
	return out, nil
}

// Scores compares every query with every database vector. The result has
// len(queries)*len(database) entries; entry q*len(database)+d holds the
// score of query q against database vector d.
func (a *Accelerated) Scores(ctx context.Context, queries, database []hypervector.Vector) ([]float32, error) {
	nq, nd := len(queries), len(database)
	if nq == 0 || nd == 0 {
		return []float32{}, nil
	}

	qbuf := pack(queries)
	dbuf := pack(database)
	out := make([]float32, nq*nd)

	tiles := (nd + a.opts.TileSize - 1) / a.opts.TileSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for q := 0; q < nq; q++ {
		for t := 0; t < tiles; t++ {
			if err := gctx.Err(); err != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				qw := qbuf[q*hypervector.Words : (q+1)*hypervector.Words]
				lo, hi := t*a.opts.TileSize, min(nd, (t+1)*a.opts.TileSize)
				row := out[q*nd:]
				for d := lo; d < hi; d++ {
					diff := simd.HammingWords(qw, dbuf[d*hypervector.Words:(d+1)*hypervector.Words])
					row[d] = 1 - float32(diff)/float32(hypervector.Dimension)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// pack copies vectors into one contiguous word buffer.
func pack(vs []hypervector.Vector) []uint64 {
	buf := make([]uint64, 0, len(vs)*hypervector.Words)
	for _, v := range vs {
		buf = append(buf, v.Words()...)
	}
	return buf
}

// ── Selection ───────────────────────────────────────────────────────────────

// SelectOptions configures Select.
type SelectOptions struct {
	// PreferAccelerated allows the accelerated backend at all.
	PreferAccelerated bool

	// RequireVectorUnit only considers the accelerated backend when the
	// CPU reports a vector ISA.
	RequireVectorUnit bool

	// Tolerance is the largest accepted difference from CPU scores.
	Tolerance float64

	// ProbeSize is the number of database vectors in the probe.
	ProbeSize int

	// Candidate replaces the accelerated backend under test.
	Candidate Backend

	Logger *slog.Logger
}

// WithPreferAccelerated toggles the accelerated backend.
func WithPreferAccelerated(on bool) func(*SelectOptions) {
	return func(o *SelectOptions) { o.PreferAccelerated = on }
}

// WithRequireVectorUnit toggles the ISA requirement.
func WithRequireVectorUnit(on bool) func(*SelectOptions) {
	return func(o *SelectOptions) { o.RequireVectorUnit = on }
}

// WithTolerance sets the probe tolerance.
func WithTolerance(tol float64) func(*SelectOptions) {
	return func(o *SelectOptions) { o.Tolerance = tol }
}

// WithCandidate sets the backend Select probes instead of Accelerated.
func WithCandidate(b Backend) func(*SelectOptions) {
	return func(o *SelectOptions) { o.Candidate = b }
}

// WithSelectLogger sets the logger.
func WithSelectLogger(l *slog.Logger) func(*SelectOptions) {
	return func(o *SelectOptions) { o.Logger = l }
}

// Select returns the accelerated backend when allowed and when it matches
// the CPU backend on a probe set, else the CPU backend.
func Select(ctx context.Context, optFns ...func(*SelectOptions)) Backend {
	opts := SelectOptions{
		PreferAccelerated: true,
		RequireVectorUnit: true,
		Tolerance:         DefaultTolerance,
		ProbeSize:         64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	cpu := NewCPU()

	if !opts.PreferAccelerated {
		return cpu
	}
	candidate := opts.Candidate
	if candidate == nil {
		if opts.RequireVectorUnit && !simd.HasVectorUnit() {
			opts.Logger.LogAttrs(ctx, slog.LevelInfo, "similarity backend selected",
				slog.String("backend", cpu.Name()), slog.String("reason", "no vector unit"))
			return cpu
		}
		candidate = NewAccelerated()
	}

	if err := Validate(ctx, candidate, cpu, opts.ProbeSize, opts.Tolerance); err != nil {
		opts.Logger.LogAttrs(ctx, slog.LevelWarn, "accelerated similarity rejected",
			slog.String("backend", candidate.Name()), slog.String("error", err.Error()))
		return cpu
	}
	opts.Logger.LogAttrs(ctx, slog.LevelInfo, "similarity backend selected",
		slog.String("backend", candidate.Name()))
	return candidate
}

// Validate compares candidate with reference on n pseudorandom vectors,
// including the query itself and its complement.
func Validate(ctx context.Context, candidate, reference Backend, n int, tolerance float64) error {
	if n < 2 {
		n = 2
	}
	seed := hypervector.SeedFromString("similarity-probe")
	query := hypervector.Random(seed, "query")
	db := make([]hypervector.Vector, n)
	db[0] = query
	db[1] = hypervector.Bind(query, complement())
	for i := 2; i < n; i++ {
		db[i] = hypervector.Random(seed, fmt.Sprintf("probe-%d", i))
	}

	want, err := reference.BatchSimilarity(ctx, query, db)
	if err != nil {
		return err
	}
	got, err := candidate.BatchSimilarity(ctx, query, db)
	if err != nil {
		return fmt.Errorf("%s: %w", candidate.Name(), err)
	}
	if len(got) != len(want) {
		return fmt.Errorf("%s: returned %d scores, want %d", candidate.Name(), len(got), len(want))
	}
	for i := range want {
		if d := got[i] - want[i]; d > tolerance || d < -tolerance {
			return fmt.Errorf("%s: score %d differs by %g (tolerance %g)", candidate.Name(), i, d, tolerance)
		}
	}
	return nil
}

// complement is the all-ones vector.
func complement() hypervector.Vector {
	words := make([]uint64, hypervector.Words)
	for i := range words {
		words[i] = ^uint64(0)
	}
	v, _ := hypervector.FromWords(words)
	return v
}

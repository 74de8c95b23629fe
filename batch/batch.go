// Package batch encodes many inputs at once.
//
// Inputs are split into chunks that run on a bounded worker pool. A
// failing item never fails the batch: its error is recorded on the item
// and its index in Result.FailedIndices. Result.Items is always aligned
// with the input, whatever order the chunks ran in. Only shared setup
// problems, such as an invalid k or chunk size, abort a call.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/internal/engine"
	"github.com/luminous-dynamics/hdc/sequence"
)

// Item is the outcome for one input.
type Item[R any] struct {
	Index int   `json:"index"`
	Value R     `json:"value"`
	Err   error `json:"-"`
}

// OK reports whether the item encoded.
func (it Item[R]) OK() bool { return it.Err == nil }

// Stats describes a batch run.
type Stats struct {
	ProcessingTime  time.Duration `json:"processing_time"`
	ChunksProcessed int           `json:"chunks_processed"`

	// Throughput is inputs per second.
	Throughput float64 `json:"throughput"`

	// AvgEncodeTime is the wall time per successful item.
	AvgEncodeTime time.Duration `json:"avg_encode_time"`
}

// Result is the outcome of a batch job.
type Result[R any] struct {
	JobID uuid.UUID `json:"job_id"`

	// Items is index-aligned with the input.
	Items []Item[R] `json:"items"`

	SuccessCount  int             `json:"success_count"`
	FailedCount   int             `json:"failed_count"`
	FailedIndices *roaring.Bitmap `json:"-"`
	Stats         Stats           `json:"stats"`
}

// Total is the number of inputs.
func (r *Result[R]) Total() int { return len(r.Items) }

// SuccessRate is SuccessCount/Total, or 0 for an empty batch.
func (r *Result[R]) SuccessRate() float64 {
	if len(r.Items) == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(len(r.Items))
}

// Values returns the successful values in input order.
func (r *Result[R]) Values() []R {
	out := make([]R, 0, r.SuccessCount)
	for _, it := range r.Items {
		if it.OK() {
			out = append(out, it.Value)
		}
	}
	return out
}

// Map applies fn to every input. The returned error is non-nil only for
// invalid options or a done ctx; per-item errors are recorded on the
// items.
func Map[T, R any](ctx context.Context, inputs []T, fn func(context.Context, T) (R, error), optFns ...func(*Options)) (*Result[R], error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	return run(ctx, opts, inputs, fn)
}

// EncodeVectors applies fn to every input.
func EncodeVectors[T any](ctx context.Context, inputs []T, fn func(T) (hypervector.Vector, error), optFns ...func(*Options)) (*Result[hypervector.Vector], error) {
	return Map(ctx, inputs, func(_ context.Context, in T) (hypervector.Vector, error) {
		return fn(in)
	}, optFns...)
}

func run[T, R any](ctx context.Context, opts Options, inputs []T, fn func(context.Context, T) (R, error)) (*Result[R], error) {
	start := time.Now()
	n := len(inputs)
	res := &Result[R]{
		JobID:         uuid.New(),
		Items:         make([]Item[R], n),
		FailedIndices: roaring.New(),
	}
	chunks := (n + opts.ChunkSize - 1) / opts.ChunkSize

	rc := opts.Resources
	encodeChunk := func(ctx context.Context, c int) {
		lo, hi := c*opts.ChunkSize, min(n, (c+1)*opts.ChunkSize)
		if err := rc.AcquireWorker(ctx); err != nil {
			for i := lo; i < hi; i++ {
				res.Items[i] = Item[R]{Index: i, Err: err}
			}
			return
		}
		defer rc.ReleaseWorker()
		for i := lo; i < hi; i++ {
			v, err := fn(ctx, inputs[i])
			res.Items[i] = Item[R]{Index: i, Value: v, Err: err}
		}
	}

	if opts.Parallel && chunks > 1 {
		pool := engine.NewWorkerPool(min(opts.Parallelism, chunks))
		err := pool.Run(ctx, chunks, encodeChunk)
		pool.Close()
		if err != nil {
			return nil, err
		}
	} else {
		for c := 0; c < chunks; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			encodeChunk(ctx, c)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, it := range res.Items {
		if it.OK() {
			res.SuccessCount++
			continue
		}
		res.FailedCount++
		res.FailedIndices.Add(uint32(i))
		opts.Logger.LogAttrs(ctx, slog.LevelDebug, "batch item failed",
			slog.String("job_id", res.JobID.String()),
			slog.Int("index", i),
			slog.String("error", it.Err.Error()))
	}

	elapsed := time.Since(start)
	res.Stats = Stats{ProcessingTime: elapsed, ChunksProcessed: chunks}
	if s := elapsed.Seconds(); s > 0 {
		res.Stats.Throughput = float64(n) / s
	}
	if res.SuccessCount > 0 {
		res.Stats.AvgEncodeTime = elapsed / time.Duration(res.SuccessCount)
	}

	opts.Logger.LogAttrs(ctx, slog.LevelInfo, "batch encoded",
		slog.String("job_id", res.JobID.String()),
		slog.Int("items", n),
		slog.Int("failed", res.FailedCount),
		slog.Int("chunks", chunks),
		slog.Bool("parallel", opts.Parallel),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

// ── Sequences ───────────────────────────────────────────────────────────────

// Record is a sequence with an identifier carried into the result.
type Record struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

// Encoder encodes batches of sequences with one shared sequence encoder.
type Encoder struct {
	enc  *sequence.Encoder
	opts Options
}

// NewEncoder validates opts and builds the shared sequence encoder.
func NewEncoder(seed hypervector.Seed, optFns ...func(*Options)) (*Encoder, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	seqOpts := append([]func(*sequence.Options){sequence.WithK(opts.K)}, opts.Sequence...)
	enc, err := sequence.NewEncoder(seed, seqOpts...)
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: enc, opts: opts}, nil
}

// Options returns the effective options.
func (e *Encoder) Options() Options { return e.opts }

// EncodeSequences encodes seqs.
func (e *Encoder) EncodeSequences(ctx context.Context, seqs []string) (*Result[sequence.Encoded], error) {
	return run(ctx, e.opts, seqs, func(_ context.Context, s string) (sequence.Encoded, error) {
		return e.enc.Encode(s)
	})
}

// EncodeRecords encodes records, tagging each result with its ID.
func (e *Encoder) EncodeRecords(ctx context.Context, records []Record) (*Result[sequence.Encoded], error) {
	return run(ctx, e.opts, records, func(_ context.Context, r Record) (sequence.Encoded, error) {
		return e.enc.EncodeWithID(r.ID, r.Sequence)
	})
}

// EncodeToVectors encodes seqs and returns the vectors of the successful
// items in input order.
func (e *Encoder) EncodeToVectors(ctx context.Context, seqs []string) ([]hypervector.Vector, error) {
	res, err := e.EncodeSequences(ctx, seqs)
	if err != nil {
		return nil, err
	}
	out := make([]hypervector.Vector, 0, res.SuccessCount)
	for _, enc := range res.Values() {
		out = append(out, enc.Vector)
	}
	return out, nil
}

// EncodeSequences builds an encoder from seed and optFns and encodes seqs.
func EncodeSequences(ctx context.Context, seed hypervector.Seed, seqs []string, optFns ...func(*Options)) (*Result[sequence.Encoded], error) {
	e, err := NewEncoder(seed, optFns...)
	if err != nil {
		return nil, err
	}
	return e.EncodeSequences(ctx, seqs)
}

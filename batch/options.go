package batch

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/resource"
	"github.com/luminous-dynamics/hdc/sequence"
)

// DefaultChunkSize is the number of items handed to a worker at once.
const DefaultChunkSize = 100

// Options configures batch jobs.
type Options struct {
	// K is the k-mer length for EncodeSequences.
	K int

	// Parallel runs chunks on a worker pool. Sequential runs produce the
	// same per-item outcomes.
	Parallel bool

	// Parallelism is the worker count. Defaults to GOMAXPROCS.
	Parallelism int

	// ChunkSize is the number of items per work unit.
	ChunkSize int

	// Sequence holds extra options for the sequence encoder built by
	// EncodeSequences, applied after K.
	Sequence []func(*sequence.Options)

	// Resources, when set, bounds concurrently running chunks.
	Resources *resource.Controller

	Logger *slog.Logger
}

// DefaultOptions returns k=6, parallel, GOMAXPROCS workers and chunks of
// DefaultChunkSize.
func DefaultOptions() Options {
	return Options{
		K:           sequence.DefaultK,
		Parallel:    true,
		Parallelism: runtime.GOMAXPROCS(0),
		ChunkSize:   DefaultChunkSize,
	}
}

// WithK sets the k-mer length.
func WithK(k int) func(*Options) {
	return func(o *Options) { o.K = k }
}

// WithParallel toggles parallel execution.
func WithParallel(on bool) func(*Options) {
	return func(o *Options) { o.Parallel = on }
}

// WithParallelism sets the worker count.
func WithParallelism(n int) func(*Options) {
	return func(o *Options) { o.Parallelism = n }
}

// WithChunkSize sets the items per chunk.
func WithChunkSize(n int) func(*Options) {
	return func(o *Options) { o.ChunkSize = n }
}

// WithSequenceOptions passes options to the sequence encoder.
func WithSequenceOptions(fns ...func(*sequence.Options)) func(*Options) {
	return func(o *Options) { o.Sequence = append(o.Sequence, fns...) }
}

// WithResources attaches a resource controller.
func WithResources(rc *resource.Controller) func(*Options) {
	return func(o *Options) { o.Resources = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(optFns []func(*Options)) (Options, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkSize <= 0 {
		return Options{}, errdefs.Configuration("chunk_size", fmt.Sprintf("must be > 0, got %d", opts.ChunkSize))
	}
	if opts.Parallelism <= 0 {
		return Options{}, errdefs.Configuration("parallelism", fmt.Sprintf("must be > 0, got %d", opts.Parallelism))
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts, nil
}

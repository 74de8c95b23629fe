package hdc

import (
	"log/slog"

	"github.com/luminous-dynamics/hdc/batch"
	"github.com/luminous-dynamics/hdc/hla"
	"github.com/luminous-dynamics/hdc/pgx"
	"github.com/luminous-dynamics/hdc/resource"
	"github.com/luminous-dynamics/hdc/sequence"
	"github.com/luminous-dynamics/hdc/similarity"
	"github.com/luminous-dynamics/hdc/variant"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	resources        *resource.Controller

	sequenceOptions []func(*sequence.Options)
	variantOptions  []func(*variant.Options)
	streamOptions   []func(*variant.StreamOptions)
	batchOptions    []func(*batch.Options)
	pgxOptions      []func(*pgx.Options)
	hlaOptions      []func(*hla.Options)

	backend       similarity.Backend
	selectOptions []func(*similarity.SelectOptions)

	// privacyBudget is the total ε; 0 leaves releases unmetered.
	privacyBudget float64
}

// Option configures New.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hdc.BasicMetricsCollector{}
//	c, _ := hdc.New(ctx, seed, hdc.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Encodes: %d, Avg latency: %dns\n", stats.EncodeCount, stats.EncodeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. The underlying slog.Logger is
// also handed to the batch and streaming engines.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResources shares a resource controller between batch and streaming
// work.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithSequenceOptions configures the sequence encoder, and the sequence
// encoder used inside batches.
func WithSequenceOptions(fns ...func(*sequence.Options)) Option {
	return func(o *options) {
		o.sequenceOptions = append(o.sequenceOptions, fns...)
	}
}

// WithVariantOptions configures the variant encoder.
func WithVariantOptions(fns ...func(*variant.Options)) Option {
	return func(o *options) {
		o.variantOptions = append(o.variantOptions, fns...)
	}
}

// WithStreamOptions configures whole-genome streaming.
//
// Example:
//
//	hdc.New(ctx, seed, hdc.WithStreamOptions(
//	    variant.WithChunkSize(50_000),
//	    variant.WithPassOnly(true),
//	))
func WithStreamOptions(fns ...func(*variant.StreamOptions)) Option {
	return func(o *options) {
		o.streamOptions = append(o.streamOptions, fns...)
	}
}

// WithBatchOptions configures batch encoding.
func WithBatchOptions(fns ...func(*batch.Options)) Option {
	return func(o *options) {
		o.batchOptions = append(o.batchOptions, fns...)
	}
}

// WithPGxOptions configures the PGx encoder, e.g. pgx.WithTables.
func WithPGxOptions(fns ...func(*pgx.Options)) Option {
	return func(o *options) {
		o.pgxOptions = append(o.pgxOptions, fns...)
	}
}

// WithHLAOptions configures the HLA encoder, e.g. hla.WithWeights.
func WithHLAOptions(fns ...func(*hla.Options)) Option {
	return func(o *options) {
		o.hlaOptions = append(o.hlaOptions, fns...)
	}
}

// WithBackend fixes the similarity backend and skips selection.
func WithBackend(b similarity.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithBackendSelection configures how New picks a similarity backend when
// none is fixed.
func WithBackendSelection(fns ...func(*similarity.SelectOptions)) Option {
	return func(o *options) {
		o.selectOptions = append(o.selectOptions, fns...)
	}
}

// WithPrivacyBudget meters every Privatize call against a total ε.
func WithPrivacyBudget(total float64) Option {
	return func(o *options) {
		o.privacyBudget = total
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

package hdc

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for encoding
// operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithJobID adds a job_id field.
func (l *Logger) WithJobID(id string) *Logger {
	return &Logger{Logger: l.Logger.With("job_id", id)}
}

// WithSample adds a sample field.
func (l *Logger) WithSample(sample string) *Logger {
	return &Logger{Logger: l.Logger.With("sample", sample)}
}

// WithK adds a k (k-mer length) field.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{Logger: l.Logger.With("k", k)}
}

// WithSeed adds the seed fingerprint. The seed itself is never logged.
func (l *Logger) WithSeed(fingerprint string) *Logger {
	return &Logger{Logger: l.Logger.With("seed", fingerprint)}
}

// LogEncode logs a single encode of the given kind ("sequence",
// "diplotype", "hla", ...).
func (l *Logger) LogEncode(ctx context.Context, kind string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "encode failed",
			"kind", kind,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "encode completed",
		"kind", kind,
	)
}

// LogBatch logs a batch job.
func (l *Logger) LogBatch(ctx context.Context, jobID string, total, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"job_id", jobID,
			"total", total,
			"failed", failed,
			"success", total-failed,
		)
		return
	}
	l.InfoContext(ctx, "batch completed",
		"job_id", jobID,
		"count", total,
	)
}

// LogStream logs a streamed VCF.
func (l *Logger) LogStream(ctx context.Context, sample string, variants, lineErrors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vcf stream failed",
			"sample", sample,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "vcf stream completed",
		"sample", sample,
		"variants", variants,
		"line_errors", lineErrors,
	)
}

// LogPrivatize logs a private release.
func (l *Logger) LogPrivatize(ctx context.Context, epsilon float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "privatize failed",
			"epsilon", epsilon,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "privatize completed",
		"epsilon", epsilon,
	)
}

// LogSimilarity logs a similarity query.
func (l *Logger) LogSimilarity(ctx context.Context, backend string, comparisons int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "similarity failed",
			"backend", backend,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "similarity completed",
		"backend", backend,
		"comparisons", comparisons,
	)
}

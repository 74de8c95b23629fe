package hdc

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. See metrics/prom for a
// Prometheus implementation.
type MetricsCollector interface {
	// RecordEncode is called after each single encode. kind names the
	// encoder ("sequence", "diplotype", "pgx_profile", "hla").
	RecordEncode(kind string, duration time.Duration, err error)

	// RecordBatch is called after each batch job.
	RecordBatch(count, failed int, duration time.Duration)

	// RecordStream is called after each streamed VCF. variants is the
	// number of encoded variants, lineErrors the malformed lines skipped.
	RecordStream(variants, lineErrors int, duration time.Duration, err error)

	// RecordPrivatize is called after each private release.
	RecordPrivatize(epsilon float64, err error)

	// RecordSimilarity is called after each similarity query.
	RecordSimilarity(comparisons int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEncode(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration)         {}
func (NoopMetricsCollector) RecordStream(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordPrivatize(float64, error)              {}
func (NoopMetricsCollector) RecordSimilarity(int, time.Duration, error)  {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	EncodeCount      atomic.Int64
	EncodeErrors     atomic.Int64
	EncodeTotalNanos atomic.Int64
	BatchCount       atomic.Int64
	BatchItems       atomic.Int64
	BatchFailed      atomic.Int64
	StreamCount      atomic.Int64
	StreamErrors     atomic.Int64
	StreamVariants   atomic.Int64
	StreamLineErrors atomic.Int64
	PrivatizeCount   atomic.Int64
	PrivatizeErrors  atomic.Int64

	// epsilonMicros accumulates ε in millionths so it fits an atomic int.
	epsilonMicros atomic.Int64

	SimilarityCount       atomic.Int64
	SimilarityErrors      atomic.Int64
	SimilarityComparisons atomic.Int64
	SimilarityTotalNanos  atomic.Int64
}

// RecordEncode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEncode(_ string, duration time.Duration, err error) {
	b.EncodeCount.Add(1)
	b.EncodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EncodeErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(count, failed int, _ time.Duration) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchFailed.Add(int64(failed))
}

// RecordStream implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStream(variants, lineErrors int, _ time.Duration, err error) {
	b.StreamCount.Add(1)
	if err != nil {
		b.StreamErrors.Add(1)
		return
	}
	b.StreamVariants.Add(int64(variants))
	b.StreamLineErrors.Add(int64(lineErrors))
}

// RecordPrivatize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrivatize(epsilon float64, err error) {
	b.PrivatizeCount.Add(1)
	if err != nil {
		b.PrivatizeErrors.Add(1)
		return
	}
	b.epsilonMicros.Add(int64(epsilon * 1e6))
}

// RecordSimilarity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSimilarity(comparisons int, duration time.Duration, err error) {
	b.SimilarityCount.Add(1)
	b.SimilarityTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SimilarityErrors.Add(1)
		return
	}
	b.SimilarityComparisons.Add(int64(comparisons))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		EncodeCount:           b.EncodeCount.Load(),
		EncodeErrors:          b.EncodeErrors.Load(),
		EncodeAvgNanos:        avg(b.EncodeTotalNanos.Load(), b.EncodeCount.Load()),
		BatchCount:            b.BatchCount.Load(),
		BatchItems:            b.BatchItems.Load(),
		BatchFailed:           b.BatchFailed.Load(),
		StreamCount:           b.StreamCount.Load(),
		StreamErrors:          b.StreamErrors.Load(),
		StreamVariants:        b.StreamVariants.Load(),
		StreamLineErrors:      b.StreamLineErrors.Load(),
		PrivatizeCount:        b.PrivatizeCount.Load(),
		PrivatizeErrors:       b.PrivatizeErrors.Load(),
		EpsilonSpent:          float64(b.epsilonMicros.Load()) / 1e6,
		SimilarityCount:       b.SimilarityCount.Load(),
		SimilarityErrors:      b.SimilarityErrors.Load(),
		SimilarityComparisons: b.SimilarityComparisons.Load(),
		SimilarityAvgNanos:    avg(b.SimilarityTotalNanos.Load(), b.SimilarityCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	EncodeCount           int64
	EncodeErrors          int64
	EncodeAvgNanos        int64
	BatchCount            int64
	BatchItems            int64
	BatchFailed           int64
	StreamCount           int64
	StreamErrors          int64
	StreamVariants        int64
	StreamLineErrors      int64
	PrivatizeCount        int64
	PrivatizeErrors       int64
	EpsilonSpent          float64
	SimilarityCount       int64
	SimilarityErrors      int64
	SimilarityComparisons int64
	SimilarityAvgNanos    int64
}

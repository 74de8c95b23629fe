// Package prom exports hdc operational metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	collector, _ := prom.New(prom.WithRegisterer(reg))
//	core, _ := hdc.New(ctx, seed, hdc.WithMetricsCollector(collector))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prom

import (
	"time"

	"github.com/luminous-dynamics/hdc"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "hdc".
	Namespace string

	// Registerer receives the metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Buckets for the latency histogram. Defaults to prometheus.DefBuckets.
	Buckets []float64
}

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) func(*Options) {
	return func(o *Options) { o.Namespace = ns }
}

// WithRegisterer sets the registry the metrics are registered with.
func WithRegisterer(r prometheus.Registerer) func(*Options) {
	return func(o *Options) { o.Registerer = r }
}

// WithBuckets sets the latency histogram buckets.
func WithBuckets(b []float64) func(*Options) {
	return func(o *Options) { o.Buckets = b }
}

// Collector implements hdc.MetricsCollector.
type Collector struct {
	latency     *prometheus.HistogramVec
	items       *prometheus.CounterVec
	lineErrors  prometheus.Counter
	epsilon     prometheus.Counter
	comparisons prometheus.Counter
}

var _ hdc.MetricsCollector = (*Collector)(nil)

// New creates and registers a Collector. Registration fails if metrics
// with the same names are already registered.
func New(optFns ...func(*Options)) (*Collector, error) {
	opts := Options{
		Namespace:  "hdc",
		Registerer: prometheus.DefaultRegisterer,
		Buckets:    prometheus.DefBuckets,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of encode, batch, stream and similarity operations",
			Buckets:   opts.Buckets,
		}, []string{"op", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "items_total",
			Help:      "Items processed by kind and status",
		}, []string{"kind", "status"}),
		lineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "vcf_line_errors_total",
			Help:      "Malformed VCF lines skipped while streaming",
		}),
		epsilon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "privacy_epsilon_spent_total",
			Help:      "Total epsilon spent on successful private releases",
		}),
		comparisons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "similarity_comparisons_total",
			Help:      "Vector comparisons performed",
		}),
	}

	for _, m := range []prometheus.Collector{c.latency, c.items, c.lineErrors, c.epsilon, c.comparisons} {
		if err := opts.Registerer.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordEncode implements hdc.MetricsCollector.
func (c *Collector) RecordEncode(kind string, d time.Duration, err error) {
	c.latency.WithLabelValues("encode_"+kind, status(err)).Observe(d.Seconds())
	c.items.WithLabelValues(kind, status(err)).Inc()
}

// RecordBatch implements hdc.MetricsCollector.
func (c *Collector) RecordBatch(count, failed int, d time.Duration) {
	c.latency.WithLabelValues("batch", "success").Observe(d.Seconds())
	c.items.WithLabelValues("batch_sequence", "success").Add(float64(count - failed))
	c.items.WithLabelValues("batch_sequence", "error").Add(float64(failed))
}

// RecordStream implements hdc.MetricsCollector.
func (c *Collector) RecordStream(variants, lineErrors int, d time.Duration, err error) {
	c.latency.WithLabelValues("stream", status(err)).Observe(d.Seconds())
	if err != nil {
		return
	}
	c.items.WithLabelValues("variant", "success").Add(float64(variants))
	c.lineErrors.Add(float64(lineErrors))
}

// RecordPrivatize implements hdc.MetricsCollector.
func (c *Collector) RecordPrivatize(epsilon float64, err error) {
	c.items.WithLabelValues("privatize", status(err)).Inc()
	if err == nil {
		c.epsilon.Add(epsilon)
	}
}

// RecordSimilarity implements hdc.MetricsCollector.
func (c *Collector) RecordSimilarity(comparisons int, d time.Duration, err error) {
	c.latency.WithLabelValues("similarity", status(err)).Observe(d.Seconds())
	if err == nil {
		c.comparisons.Add(float64(comparisons))
	}
}

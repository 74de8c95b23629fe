// Package hdc encodes genetic data into 10,000-bit binary hypervectors for
// approximate, privacy-preserving similarity comparison.
//
// Everything is derived from a secret 32-byte seed. Two parties holding the
// same seed produce bit-identical vectors for identical inputs; vectors
// produced under different seeds are not comparable.
//
// # Quick Start
//
//	ctx := context.Background()
//	seed := hypervector.SeedFromString(os.Getenv("HDC_SEED"))
//	c, _ := hdc.New(ctx, seed)
//
//	a, _ := c.EncodeSequence(ctx, "ACGTACGTACGTAAGT")
//	b, _ := c.EncodeSequence(ctx, "ACGTACGTACGTACGT")
//	fmt.Println(hypervector.Similarity(a.Vector, b.Vector))
//
// # Encoders
//
// Each domain has its own package, usable standalone:
//
//   - sequence: DNA/RNA k-mer encoding
//   - variant: VCF records and bounded-memory whole-genome streaming
//   - pgx: star-allele diplotypes, drug interactions, ancestry-aware dosing
//   - hla: HLA typings and transplant compatibility
//
// Core wires them to one seed with shared logging, metrics and resource
// limits.
//
// # Privacy
//
// dp applies randomized response to a finished vector. The release keeps
// no reference to the original:
//
//	priv, _ := c.Privatize(ctx, a.Vector, dp.Pure(1.0))
//	fmt.Println(dp.CorrectedSimilarity(priv, other))
//
// WithPrivacyBudget meters releases against a total ε.
//
// # Similarity
//
// Similarity runs on a pluggable backend. New selects an accelerated
// backend when the CPU has a vector unit and the backend agrees with the
// scalar reference on a probe set; otherwise it falls back to the CPU.
//
// # Observability
//
// Use WithLogger for structured logs and WithMetricsCollector for metrics.
// metrics/prom exports Prometheus metrics.
package hdc

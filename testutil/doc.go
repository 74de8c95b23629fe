// Package testutil provides deterministic fixtures for tests and
// benchmarks: random nucleotide sequences, hypervectors and VCF
// documents.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(4711)
//	seq := rng.Sequence(200)
//	vcf := testutil.BuildVCF("SAMPLE1", rng.Variants(500, "chr1", "chr2"))
package testutil

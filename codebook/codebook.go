// Package codebook maps symbols (k-mers, genes, alleles, loci) to
// hypervectors.
//
// Procedural codebooks derive every entry from the session seed and are
// filled lazily. Learned codebooks are loaded from a trained model file
// and may fall back to a procedural codebook for symbols the model never
// saw.
package codebook

import "github.com/luminous-dynamics/hdc/hypervector"

// Source resolves a symbol to its vector. Implementations are safe for
// concurrent use and return the same vector for the same symbol.
type Source interface {
	Get(symbol string) (hypervector.Vector, error)
}

// Namespace returns a view of src that prefixes every symbol, so that
// encoders sharing one codebook cannot collide (a gene named "A" and an
// HLA locus named "A" stay distinct).
func Namespace(src Source, prefix string) Source {
	if prefix == "" {
		return src
	}
	return namespaced{src: src, prefix: prefix}
}

type namespaced struct {
	src    Source
	prefix string
}

func (n namespaced) Get(symbol string) (hypervector.Vector, error) {
	return n.src.Get(n.prefix + symbol)
}

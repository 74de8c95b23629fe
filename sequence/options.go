package sequence

import (
	"fmt"

	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/errdefs"
)

const (
	// DefaultK is the default k-mer length.
	DefaultK = 6

	// MaxK is the largest supported k-mer length.
	MaxK = 32
)

// Policy decides what happens to characters outside the nucleotide alphabet.
type Policy int

const (
	// PolicyReject fails the encode on any character other than A, C, G, T
	// (and U when RNA mapping is on).
	PolicyReject Policy = iota

	// PolicyWildcard maps every non-ACGT character to N and encodes k-mers
	// containing N like any other symbol.
	PolicyWildcard
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyWildcard:
		return "wildcard"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Options configures an Encoder.
type Options struct {
	// K is the k-mer length, 1..MaxK.
	K int

	// RNA maps U to T before encoding, so an RNA transcript and its DNA
	// template encode identically.
	RNA bool

	// Policy handles non-nucleotide characters.
	Policy Policy

	// Codebook resolves k-mers. Nil uses a procedural codebook on the
	// encoder seed.
	Codebook codebook.Source
}

// DefaultOptions returns k=6, RNA mapping on, PolicyReject.
func DefaultOptions() Options {
	return Options{
		K:      DefaultK,
		RNA:    true,
		Policy: PolicyReject,
	}
}

// WithK sets the k-mer length.
func WithK(k int) func(*Options) {
	return func(o *Options) { o.K = k }
}

// WithRNA toggles U→T mapping.
func WithRNA(on bool) func(*Options) {
	return func(o *Options) { o.RNA = on }
}

// WithPolicy sets the alphabet policy.
func WithPolicy(p Policy) func(*Options) {
	return func(o *Options) { o.Policy = p }
}

// WithCodebook overrides the k-mer codebook, e.g. with a learned one.
func WithCodebook(cb codebook.Source) func(*Options) {
	return func(o *Options) { o.Codebook = cb }
}

func (o Options) validate() error {
	if o.K < 1 || o.K > MaxK {
		return errdefs.Configuration("k", fmt.Sprintf("must be in [1, %d], got %d", MaxK, o.K))
	}
	if o.Policy != PolicyReject && o.Policy != PolicyWildcard {
		return errdefs.Configuration("policy", fmt.Sprintf("unknown alphabet policy %d", int(o.Policy)))
	}
	return nil
}

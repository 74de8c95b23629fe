// Package hla encodes HLA typings and scores donor/recipient
// compatibility for transplant matching.
//
// A typing has two alleles at each of the loci A, B, C, DRB1 and DQB1.
// Each locus is encoded as the bundle of its two allele vectors.
// Compatibility combines exact allele matching per locus with the
// per-locus vector similarity, weighted by clinical importance.
package hla

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/luminous-dynamics/hdc/codec"
	"github.com/luminous-dynamics/hdc/errdefs"
)

// Locus is one of the five typed HLA loci.
type Locus int

const (
	A Locus = iota
	B
	C
	DRB1
	DQB1
)

const (
	// NumLoci is the number of typed loci.
	NumLoci = 5

	// NumAlleles is the number of alleles in a complete typing.
	NumAlleles = 2 * NumLoci
)

// Loci lists the loci in typing order.
var Loci = [NumLoci]Locus{A, B, C, DRB1, DQB1}

func (l Locus) String() string {
	switch l {
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case DRB1:
		return "DRB1"
	case DQB1:
		return "DQB1"
	default:
		return fmt.Sprintf("Locus(%d)", int(l))
	}
}

// ParseLocus parses a locus name such as "DRB1".
func ParseLocus(s string) (Locus, error) {
	for _, l := range Loci {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, errdefs.UnknownSymbol("locus", s)
}

// Allele is a validated allele name at a locus.
type Allele struct {
	Locus Locus  `json:"locus"`
	Name  string `json:"name"`
}

func (a Allele) String() string { return a.Name }

var fieldsPattern = regexp.MustCompile(`^\d{2,3}(:\d{2,4}){1,3}[A-Z]?$`)

// ParseAllele validates names of the form LOCUS*NN:NN, optionally with
// further fields and an expression suffix ("A*02:01", "DRB1*15:01:01:02N").
func ParseAllele(s string) (Allele, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "HLA-")
	prefix, fields, ok := strings.Cut(s, "*")
	if !ok {
		return Allele{}, errdefs.Encoding("allele %q is not in LOCUS*NN:NN form", s)
	}
	locus, err := ParseLocus(prefix)
	if err != nil {
		return Allele{}, err
	}
	if !fieldsPattern.MatchString(fields) {
		return Allele{}, errdefs.Encoding("allele %q is not in LOCUS*NN:NN form", s)
	}
	return Allele{Locus: locus, Name: s}, nil
}

// ── Weights ─────────────────────────────────────────────────────────────────

// Weights are the per-locus clinical weights. Class II mismatches (DRB1,
// DQB1) weigh more than class I.
type Weights struct {
	A    float64 `yaml:"A" json:"A"`
	B    float64 `yaml:"B" json:"B"`
	C    float64 `yaml:"C" json:"C"`
	DRB1 float64 `yaml:"DRB1" json:"DRB1"`
	DQB1 float64 `yaml:"DQB1" json:"DQB1"`
}

// DefaultWeights returns A=1, B=1, C=0.5, DRB1=2, DQB1=1.5.
func DefaultWeights() Weights {
	return Weights{A: 1.0, B: 1.0, C: 0.5, DRB1: 2.0, DQB1: 1.5}
}

// Of returns the weight for l.
func (w Weights) Of(l Locus) float64 {
	switch l {
	case A:
		return w.A
	case B:
		return w.B
	case C:
		return w.C
	case DRB1:
		return w.DRB1
	case DQB1:
		return w.DQB1
	default:
		return 0
	}
}

// Total is the sum of all weights.
func (w Weights) Total() float64 {
	return w.A + w.B + w.C + w.DRB1 + w.DQB1
}

// Validate requires non-negative weights with a positive sum.
func (w Weights) Validate() error {
	for _, l := range Loci {
		if w.Of(l) < 0 {
			return errdefs.Configuration("weights."+l.String(), "must be >= 0")
		}
	}
	if w.Total() <= 0 {
		return errdefs.Configuration("weights", "must not all be zero")
	}
	return nil
}

// LoadWeights decodes YAML weights. Omitted loci take their default.
func LoadWeights(r io.Reader) (Weights, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Weights{}, fmt.Errorf("read hla weights: %w", err)
	}
	w := DefaultWeights()
	if err := (codec.YAML{}).Unmarshal(data, &w); err != nil {
		return Weights{}, &errdefs.FormatError{Source: "hla weights", Reason: "invalid yaml", Err: err}
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// LoadWeightsFile reads weights from path.
func LoadWeightsFile(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("open hla weights: %w", err)
	}
	return LoadWeights(bytes.NewReader(data))
}

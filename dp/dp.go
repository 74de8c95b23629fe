// Package dp releases hypervectors under differential privacy using
// randomized response: every bit is independently flipped with
// probability 1/(1+e^ε).
//
// A privatized vector only exposes its noisy bits. Similarity between two
// privatized vectors is biased toward 0.5; CorrectedSimilarity removes the
// expected bias given both release parameters.
//
//	params := dp.Pure(1.0)
//	hv, err := dp.FromHypervector(v, params)
//	if err != nil { ... }
//	store(hv.AsHypervector())
package dp

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Mechanism selects how bits are perturbed.
type Mechanism int

const (
	// RandomizedResponse flips each bit with probability 1/(1+e^ε).
	RandomizedResponse Mechanism = iota

	// ApproximateRandomizedResponse resamples each bit uniformly with
	// probability δ and otherwise applies RandomizedResponse.
	ApproximateRandomizedResponse
)

func (m Mechanism) String() string {
	switch m {
	case RandomizedResponse:
		return "randomized_response"
	case ApproximateRandomizedResponse:
		return "approximate_randomized_response"
	default:
		return fmt.Sprintf("Mechanism(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mechanism) MarshalText() ([]byte, error) {
	switch m {
	case RandomizedResponse, ApproximateRandomizedResponse:
		return []byte(m.String()), nil
	}
	return nil, errdefs.UnknownSymbol("mechanism", m.String())
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mechanism) UnmarshalText(text []byte) error {
	switch string(text) {
	case "randomized_response":
		*m = RandomizedResponse
	case "approximate_randomized_response":
		*m = ApproximateRandomizedResponse
	default:
		return errdefs.UnknownSymbol("mechanism", string(text))
	}
	return nil
}

// Params are the release parameters of one privatized vector.
type Params struct {
	Epsilon   float64   `json:"epsilon" yaml:"epsilon"`
	Delta     float64   `json:"delta,omitempty" yaml:"delta,omitempty"`
	Mechanism Mechanism `json:"mechanism" yaml:"mechanism"`
}

// Pure returns ε-differential privacy parameters.
func Pure(epsilon float64) Params {
	return Params{Epsilon: epsilon, Mechanism: RandomizedResponse}
}

// Approximate returns (ε, δ) parameters.
func Approximate(epsilon, delta float64) Params {
	return Params{Epsilon: epsilon, Delta: delta, Mechanism: ApproximateRandomizedResponse}
}

// Validate requires a finite ε > 0 and δ in [0, 1).
func (p Params) Validate() error {
	if math.IsNaN(p.Epsilon) || math.IsInf(p.Epsilon, 0) {
		return &errdefs.PrivacyBudgetError{Param: "epsilon", Value: p.Epsilon, Reason: "must be finite"}
	}
	if p.Epsilon <= 0 {
		return &errdefs.PrivacyBudgetError{Param: "epsilon", Value: p.Epsilon, Reason: "must be > 0"}
	}
	switch p.Mechanism {
	case RandomizedResponse:
		if p.Delta != 0 {
			return &errdefs.PrivacyBudgetError{Param: "delta", Value: p.Delta, Reason: "pure randomized response has no delta"}
		}
	case ApproximateRandomizedResponse:
		if math.IsNaN(p.Delta) || p.Delta < 0 || p.Delta >= 1 {
			return &errdefs.PrivacyBudgetError{Param: "delta", Value: p.Delta, Reason: "must be in [0, 1)"}
		}
	default:
		return &errdefs.PrivacyBudgetError{Param: "mechanism", Value: float64(p.Mechanism), Reason: "unknown mechanism"}
	}
	return nil
}

// FlipProbability is the probability that a released bit differs from
// the original. For the approximate mechanism it includes the uniform
// resampling: (1−δ)·p + δ/2.
func (p Params) FlipProbability() float64 {
	q := 1 / (1 + math.Exp(p.Epsilon))
	if p.Mechanism == ApproximateRandomizedResponse {
		q = (1-p.Delta)*q + p.Delta/2
	}
	return q
}

// ExpectedSimilarity is the expected similarity of a released vector to
// its original.
func (p Params) ExpectedSimilarity() float64 {
	return 1 - p.FlipProbability()
}

// ExpectedRetention is the expected similarity between two independent
// releases of the same vector.
func (p Params) ExpectedRetention() float64 {
	q := p.FlipProbability()
	return (1-q)*(1-q) + q*q
}

// signal is the factor by which a release shrinks the distance of a
// similarity from 0.5.
func (p Params) signal() float64 {
	return 1 - 2*p.FlipProbability()
}

// IsHighPrivacy reports ε <= 1.
func (p Params) IsHighPrivacy() bool {
	return p.Epsilon <= 1
}

// Describe summarizes the privacy/utility trade-off.
func (p Params) Describe() string {
	s := fmt.Sprintf("ε=%.2f: flip_prob=%.1f%%, similarity_retention=%.1f%%",
		p.Epsilon, p.FlipProbability()*100, p.ExpectedRetention()*100)
	if p.Mechanism == ApproximateRandomizedResponse {
		s += fmt.Sprintf(", δ=%g", p.Delta)
	}
	return s
}

// ── Levels ──────────────────────────────────────────────────────────────────

// Level is a recommended privacy setting.
type Level int

const (
	LevelHigh     Level = iota // ε = 0.1
	LevelStrong                // ε = 0.5
	LevelModerate              // ε = 1
	LevelStandard              // ε = 2
	LevelLow                   // ε = 5
)

var levelEpsilon = [...]float64{0.1, 0.5, 1, 2, 5}

// Levels lists the recommended levels from most to least private.
var Levels = []Level{LevelHigh, LevelStrong, LevelModerate, LevelStandard, LevelLow}

// Params returns the pure parameters for l.
func (l Level) Params() Params {
	if l < 0 || int(l) >= len(levelEpsilon) {
		return Pure(math.NaN())
	}
	return Pure(levelEpsilon[l])
}

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelStrong:
		return "strong"
	case LevelModerate:
		return "moderate"
	case LevelStandard:
		return "standard"
	case LevelLow:
		return "low"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ── Release ─────────────────────────────────────────────────────────────────

// Hypervector is a privatized vector. The original is not retained.
type Hypervector struct {
	v      hypervector.Vector
	params Params
}

// AsHypervector returns the released bits.
func (h *Hypervector) AsHypervector() hypervector.Vector { return h.v }

// Params returns the release parameters.
func (h *Hypervector) Params() Params { return h.params }

// Epsilon returns the privacy budget consumed by this release.
func (h *Hypervector) Epsilon() float64 { return h.params.Epsilon }

// IsHighPrivacy reports ε <= 1.
func (h *Hypervector) IsHighPrivacy() bool { return h.params.IsHighPrivacy() }

// Similarity is the raw similarity of the released bits.
func (h *Hypervector) Similarity(other *Hypervector) float64 {
	return hypervector.Similarity(h.v, other.v)
}

// Privatize releases original under params, drawing noise from src.
func Privatize(original hypervector.Vector, params Params, src rand.Source) (*Hypervector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errdefs.Configuration("rng", "must not be nil")
	}
	rng := rand.New(src)
	p := 1 / (1 + math.Exp(params.Epsilon))
	resample := params.Mechanism == ApproximateRandomizedResponse && params.Delta > 0

	words := original.Words()
	for i := 0; i < hypervector.Dimension; i++ {
		w, bit := i/64, uint64(1)<<(i%64)
		if resample && rng.Float64() < params.Delta {
			if rng.Uint64()&1 == 1 {
				words[w] |= bit
			} else {
				words[w] &^= bit
			}
			continue
		}
		if rng.Float64() < p {
			words[w] ^= bit
		}
	}
	v, err := hypervector.FromWords(words)
	if err != nil {
		return nil, err
	}
	return &Hypervector{v: v, params: params}, nil
}

// FromHypervector releases original using noise seeded from the
// operating system CSPRNG.
func FromHypervector(original hypervector.Vector, params Params) (*Hypervector, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed dp noise: %w", err)
	}
	return Privatize(original, params, rand.NewChaCha8(seed))
}

// SeededSource returns a deterministic noise source for reproducible
// releases in tests and audits.
func SeededSource(seed uint64) rand.Source {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return rand.NewChaCha8(s)
}

// CorrectedSimilarity estimates the similarity of the two originals from
// their releases, clamped to [0, 1]. Releases at 0.5 expected agreement
// carry no signal and yield 0.5.
func CorrectedSimilarity(a, b *Hypervector) float64 {
	raw := a.Similarity(b)
	k := a.params.signal() * b.params.signal()
	if k <= 0 {
		return 0.5
	}
	corrected := 0.5 + (raw-0.5)/k
	return min(1, max(0, corrected))
}

package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/luminous-dynamics/hdc/hypervector"
)

// Stats summarizes a set of similarities.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// StatsOf computes population statistics. An empty input yields zeros.
func StatsOf(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1), Count: len(values)}
	sum := 0.0
	for _, v := range values {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - s.Mean
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(len(values)))
	return s
}

// ── Confidence ──────────────────────────────────────────────────────────────

// Level grades how likely a similarity reflects related inputs.
type Level int

const (
	VeryLow Level = iota
	Low
	Moderate
	High
	VeryHigh
)

// LevelOf maps a similarity to a level using the cut points 0.85, 0.70,
// 0.58 and 0.52.
func LevelOf(similarity float64) Level {
	switch {
	case similarity >= 0.85:
		return VeryHigh
	case similarity >= 0.70:
		return High
	case similarity >= 0.58:
		return Moderate
	case similarity >= 0.52:
		return Low
	default:
		return VeryLow
	}
}

func (l Level) String() string {
	switch l {
	case VeryHigh:
		return "very_high"
	case High:
		return "high"
	case Moderate:
		return "moderate"
	case Low:
		return "low"
	case VeryLow:
		return "very_low"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Description is a human-readable interpretation.
func (l Level) Description() string {
	switch l {
	case VeryHigh:
		return "Very high confidence - strong match"
	case High:
		return "High confidence - likely match"
	case Moderate:
		return "Moderate confidence - possible match"
	case Low:
		return "Low confidence - weak match"
	default:
		return "Very low confidence - likely unrelated"
	}
}

// Probability is the calibrated match probability of the level.
func (l Level) Probability() float64 {
	switch l {
	case VeryHigh:
		return 0.97
	case High:
		return 0.90
	case Moderate:
		return 0.77
	case Low:
		return 0.60
	default:
		return 0.35
	}
}

// Confidence is a similarity with its significance against the random
// baseline of 0.5.
type Confidence struct {
	Similarity float64 `json:"similarity"`
	Level      Level   `json:"level"`

	// ZScore is measured against the similarity distribution of unrelated
	// vectors, N(0.5, 0.25/Dimension).
	ZScore float64 `json:"z_score"`

	BitsAboveRandom int     `json:"bits_above_random"`
	PValue          float64 `json:"p_value"`
}

// ConfidenceOf grades similarity.
func ConfidenceOf(similarity float64) Confidence {
	const mean = 0.5
	std := math.Sqrt(mean * mean / hypervector.Dimension)
	z := (similarity - mean) / std
	return Confidence{
		Similarity:      similarity,
		Level:           LevelOf(similarity),
		ZScore:          z,
		BitsAboveRandom: int(hypervector.Dimension*similarity) - int(hypervector.Dimension*mean),
		PValue:          0.5 * math.Erfc(z/math.Sqrt2),
	}
}

// Compare grades the similarity of a and b.
func Compare(a, b hypervector.Vector) Confidence {
	return ConfidenceOf(hypervector.Similarity(a, b))
}

// IsSignificant reports p < alpha.
func (c Confidence) IsSignificant(alpha float64) bool { return c.PValue < alpha }

// IsClinicalGrade reports a High or VeryHigh level.
func (c Confidence) IsClinicalGrade() bool { return c.Level >= High }

// Summary grades a batch of similarities.
type Summary struct {
	Comparisons         []Confidence `json:"comparisons"`
	Stats               Stats        `json:"stats"`
	HighConfidenceCount int          `json:"high_confidence_count"`
	ClinicalGradeCount  int          `json:"clinical_grade_count"`
}

// Summarize grades every similarity.
func Summarize(similarities []float64) Summary {
	s := Summary{
		Comparisons: make([]Confidence, len(similarities)),
		Stats:       StatsOf(similarities),
	}
	for i, v := range similarities {
		c := ConfidenceOf(v)
		s.Comparisons[i] = c
		if c.Level >= High {
			s.HighConfidenceCount++
		}
		if c.IsClinicalGrade() {
			s.ClinicalGradeCount++
		}
	}
	return s
}

// TopMatches returns the n most similar comparisons, best first.
func (s Summary) TopMatches(n int) []Confidence {
	out := append([]Confidence(nil), s.Comparisons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

package similarity

import (
	"context"
	"sort"

	"github.com/luminous-dynamics/hdc/hypervector"
)

// Matrix is a symmetric pairwise similarity matrix with 1.0 on the
// diagonal.
type Matrix struct {
	n    int
	vals []float64
}

// Pair is an off-diagonal matrix entry with I < J.
type Pair struct {
	I          int     `json:"i"`
	J          int     `json:"j"`
	Similarity float64 `json:"similarity"`
}

// crossScorer scores a whole query set against a database in one call.
type crossScorer interface {
	Scores(ctx context.Context, queries, database []hypervector.Vector) ([]float32, error)
}

// Pairwise computes the similarity of every pair of vectors on b.
// Backends with a cross scorer pack the vectors once for the whole matrix.
func Pairwise(ctx context.Context, b Backend, vectors []hypervector.Vector) (*Matrix, error) {
	n := len(vectors)
	m := &Matrix{n: n, vals: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		m.vals[i*n+i] = 1
	}
	if n < 2 {
		return m, nil
	}

	if cs, ok := b.(crossScorer); ok {
		scores, err := cs.Scores(ctx, vectors, vectors)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				s := float64(scores[i*n+j])
				m.vals[i*n+j] = s
				m.vals[j*n+i] = s
			}
		}
		return m, nil
	}

	for i := 0; i < n-1; i++ {
		row, err := b.BatchSimilarity(ctx, vectors[i], vectors[i+1:])
		if err != nil {
			return nil, err
		}
		for k, s := range row {
			j := i + 1 + k
			m.vals[i*n+j] = s
			m.vals[j*n+i] = s
		}
	}
	return m, nil
}

// Size returns the number of vectors.
func (m *Matrix) Size() int { return m.n }

// At returns the similarity of vectors i and j.
func (m *Matrix) At(i, j int) float64 { return m.vals[i*m.n+j] }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	out := make([]float64, m.n)
	copy(out, m.vals[i*m.n:(i+1)*m.n])
	return out
}

// MostSimilarPair returns the off-diagonal pair with the highest
// similarity, the lowest (i, j) on ties. ok is false for fewer than two
// vectors.
func (m *Matrix) MostSimilarPair() (best Pair, ok bool) {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if s := m.vals[i*m.n+j]; !ok || s > best.Similarity {
				best, ok = Pair{I: i, J: j, Similarity: s}, true
			}
		}
	}
	return best, ok
}

// PairsAboveThreshold returns pairs with similarity >= t, sorted by
// similarity descending and then by ascending (i, j).
func (m *Matrix) PairsAboveThreshold(t float64) []Pair {
	var out []Pair
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if s := m.vals[i*m.n+j]; s >= t {
				out = append(out, Pair{I: i, J: j, Similarity: s})
			}
		}
	}
	// Enumeration is already in (i, j) order.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Similarity > out[b].Similarity
	})
	return out
}

// Stats summarizes the off-diagonal similarities.
func (m *Matrix) Stats() Stats {
	vals := make([]float64, 0, m.n*(m.n-1)/2)
	for i := 0; i < m.n; i++ {
		vals = append(vals, m.vals[i*m.n+i+1:(i+1)*m.n]...)
	}
	return StatsOf(vals)
}

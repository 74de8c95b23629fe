package similarity

import (
	"context"
	"sort"
	"sync"

	"github.com/luminous-dynamics/hdc/hypervector"
)

// TopK returns the k database entries most similar to query, best first,
// ties by ascending index. k <= 0 returns nothing.
func TopK(ctx context.Context, b Backend, query hypervector.Vector, database []hypervector.Vector, k int) ([]Match, error) {
	if k <= 0 || len(database) == 0 {
		return []Match{}, nil
	}
	scores, err := b.BatchSimilarity(ctx, query, database)
	if err != nil {
		return nil, err
	}
	q := newTopQueue(k)
	for i, s := range scores {
		q.push(Match{Index: i, Similarity: s})
	}
	return q.sorted(), nil
}

// AboveThreshold returns database entries with similarity >= t, best
// first, ties by ascending index.
func AboveThreshold(ctx context.Context, b Backend, query hypervector.Vector, database []hypervector.Vector, t float64) ([]Match, error) {
	if len(database) == 0 {
		return []Match{}, nil
	}
	scores, err := b.BatchSimilarity(ctx, query, database)
	if err != nil {
		return nil, err
	}
	out := []Match{}
	for i, s := range scores {
		if s >= t {
			out = append(out, Match{Index: i, Similarity: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// ── Index ───────────────────────────────────────────────────────────────────

// SearchResult is a labelled match from an Index.
type SearchResult struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Index is an in-memory collection of labelled vectors searched
// exhaustively. It is safe for concurrent use.
type Index struct {
	backend Backend

	mu      sync.RWMutex
	ids     []string
	vectors []hypervector.Vector
}

// NewIndex returns an empty index. A nil backend uses the CPU backend.
func NewIndex(b Backend) *Index {
	if b == nil {
		b = NewCPU()
	}
	return &Index{backend: b}
}

// Add appends a vector. IDs need not be unique.
func (x *Index) Add(id string, v hypervector.Vector) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, v)
}

// Len returns the number of vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Get returns entry i.
func (x *Index) Get(i int) (string, hypervector.Vector, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.ids) {
		return "", hypervector.Vector{}, false
	}
	return x.ids[i], x.vectors[i], true
}

// MemorySize approximates the bytes held by IDs and vectors.
func (x *Index) MemorySize() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, id := range x.ids {
		n += len(id) + hypervector.Bytes
	}
	return n
}

func (x *Index) snapshot() ([]string, []hypervector.Vector) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ids[:len(x.ids):len(x.ids)], x.vectors[:len(x.vectors):len(x.vectors)]
}

// Search returns the k most similar entries.
func (x *Index) Search(ctx context.Context, query hypervector.Vector, k int) ([]SearchResult, error) {
	ids, vs := x.snapshot()
	ms, err := TopK(ctx, x.backend, query, vs, k)
	if err != nil {
		return nil, err
	}
	return label(ids, ms), nil
}

// SearchThreshold returns entries with similarity >= t, best first.
func (x *Index) SearchThreshold(ctx context.Context, query hypervector.Vector, t float64) ([]SearchResult, error) {
	ids, vs := x.snapshot()
	ms, err := AboveThreshold(ctx, x.backend, query, vs, t)
	if err != nil {
		return nil, err
	}
	return label(ids, ms), nil
}

func label(ids []string, ms []Match) []SearchResult {
	out := make([]SearchResult, len(ms))
	for i, m := range ms {
		out[i] = SearchResult{ID: ids[m.Index], Similarity: m.Similarity}
	}
	return out
}

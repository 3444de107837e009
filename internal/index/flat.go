package index

import (
	"fmt"
	"math"
	"sort"
)

// Result is a search hit: a chunk id with its inner-product score.
type Result struct {
	ID    int64
	Score float32
}

// Flat is an exact nearest-neighbor index over (id, vector) pairs. The
// similarity metric is inner product; callers are expected to add and query
// L2-normalized vectors, which makes the score cosine similarity. The metric
// is fixed for the lifetime of an index; mixing metrics between ingestion
// and query silently degrades ranking.
//
// Flat is not safe for concurrent use; Store provides the locking.
type Flat struct {
	dim  int
	ids  []int64
	vecs [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the configured vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.ids) }

// Add appends an (id, vector) pair. The vector is stored as-is.
func (f *Flat) Add(id int64, vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), f.dim)
	}
	f.ids = append(f.ids, id)
	f.vecs = append(f.vecs, vec)
	return nil
}

// truncate discards all entries from position n onward. Used to unwind a
// failed batch append.
func (f *Flat) truncate(n int) {
	if n < 0 || n > len(f.ids) {
		return
	}
	f.ids = f.ids[:n]
	f.vecs = f.vecs[:n]
}

// Search returns the k entries with the highest inner product against q,
// highest first. Ties are broken by ascending id so output is deterministic.
// k is clamped to [0, Len()].
func (f *Flat) Search(q []float32, k int) []Result {
	if k > len(f.ids) {
		k = len(f.ids)
	}
	if k <= 0 || len(q) != f.dim {
		return nil
	}

	results := make([]Result, len(f.ids))
	for i, vec := range f.vecs {
		results[i] = Result{ID: f.ids[i], Score: dot(q, vec)}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results[:k]
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Normalize scales v to unit L2 length in place and returns it. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

// Package retrieval orchestrates the query side of the pipeline: embed the
// question, search the vector index, resolve ids back to chunks.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solenko/tutord/internal/index"
)

// Embedder turns a query into a vector under the same metric the index was
// built with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the slice of the vector store the retriever needs.
type Index interface {
	Search(q []float32, k int) []index.Result
	Resolve(id int64) (index.Chunk, bool)
	Count() int
}

// Retriever combines embedding and nearest-neighbor search.
type Retriever struct {
	embedder Embedder
	idx      Index
	logger   *slog.Logger
}

// New creates a Retriever over the given embedder and index.
func New(embedder Embedder, idx Index) *Retriever {
	return &Retriever{embedder: embedder, idx: idx, logger: slog.Default()}
}

// Retrieve returns up to k chunks most similar to query, best first. k is
// clamped to the number of indexed chunks; asking for more than exist is not
// an error. An id returned by the index with no metadata entry is a soft
// inconsistency: logged, skipped, never surfaced.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]index.Chunk, error) {
	if k <= 0 || r.idx.Count() == 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits := r.idx.Search(vec, k)
	chunks := make([]index.Chunk, 0, len(hits))
	for _, h := range hits {
		c, ok := r.idx.Resolve(h.ID)
		if !ok {
			r.logger.Warn("index returned id with no metadata entry", "id", h.ID)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

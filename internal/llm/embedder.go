// Package llm wraps the hosted OpenAI-compatible API behind embedding and
// generation adapters. Adapters surface transport failures as coded errors
// and never retry; resilience belongs to the orchestration layer.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/index"
)

const (
	// DefaultEmbeddingModel is used when config leaves the model empty.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions matches text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536

	defaultEmbedTimeout = 30 * time.Second
)

// EmbeddingAPI is the slice of the OpenAI client the embedder needs.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder turns text into L2-normalized vectors of a fixed dimension.
type Embedder struct {
	api     EmbeddingAPI
	model   string
	dim     int
	timeout time.Duration
}

// EmbedderConfig configures an Embedder. Zero values fall back to defaults.
type EmbedderConfig struct {
	Model   string
	Dim     int
	Timeout time.Duration
}

// NewEmbedder creates an Embedder over the given API client.
func NewEmbedder(api EmbeddingAPI, cfg EmbedderConfig) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Dim <= 0 {
		cfg.Dim = DefaultEmbeddingDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmbedTimeout
	}
	return &Embedder{api: api, model: cfg.Model, dim: cfg.Dim, timeout: cfg.Timeout}
}

// Dim returns the embedding dimension the adapter enforces.
func (e *Embedder) Dim() int { return e.dim }

// Embed returns the normalized embedding for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.New(domain.CodeValidation, "text to embed must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, domain.Wrap(domain.CodeEmbeddingUnavailable, "embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.New(domain.CodeEmbeddingUnavailable, "embedding response contained no data")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, domain.Newf(domain.CodeEmbeddingUnavailable, "embedding dimension %d does not match configured %d", len(vec), e.dim)
	}
	return index.Normalize(vec), nil
}

// EmbedBatch embeds texts concurrently, preserving order. Returns nil for
// empty input. Any single failure fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency toward the hosted API.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

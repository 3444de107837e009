// Package ingest orchestrates document ingestion: extract text, chunk it,
// embed the chunks, and append vectors plus metadata to the index store as
// one all-or-nothing batch.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/solenko/tutord/internal/chunker"
	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/extract"
	"github.com/solenko/tutord/internal/index"
)

// BatchEmbedder embeds a batch of chunk texts, preserving order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Appender applies a batch of chunks to the index store atomically.
type Appender interface {
	Append(pending []index.Pending) ([]int64, error)
}

// Service runs the ingestion pipeline. Chunk sizing is fixed at
// construction so every document in an index is chunked the same way.
type Service struct {
	embedder BatchEmbedder
	store    Appender
	size     int
	overlap  int
	logger   *slog.Logger
}

// New creates an ingestion Service. size/overlap <= 0 fall back to the
// chunker defaults.
func New(embedder BatchEmbedder, store Appender, size, overlap int) *Service {
	if size <= 0 {
		size = chunker.DefaultSize
		overlap = chunker.DefaultOverlap
	}
	return &Service{
		embedder: embedder,
		store:    store,
		size:     size,
		overlap:  overlap,
		logger:   slog.Default(),
	}
}

// IngestPDF extracts text from a PDF and ingests it. Returns the number of
// chunks indexed.
func (s *Service) IngestPDF(ctx context.Context, r io.ReaderAt, fileSize int64, source, filename string) (int, error) {
	text, err := extract.PDFText(r, fileSize)
	if err != nil {
		return 0, err
	}
	return s.IngestText(ctx, text, source, filename)
}

// IngestText chunks, embeds, and indexes already-extracted text. If any
// chunk fails to embed, or the store cannot persist the batch, nothing is
// indexed and the id counter is untouched.
func (s *Service) IngestText(ctx context.Context, text, source, filename string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: nothing to ingest", domain.ErrEmptyDocument)
	}

	chunks, err := chunker.Split(text, s.size, s.overlap)
	if err != nil {
		return 0, err
	}

	vecs, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	pending := make([]index.Pending, len(chunks))
	for i, c := range chunks {
		pending[i] = index.Pending{Text: c, Source: source, Filename: filename, Vector: vecs[i]}
	}

	ids, err := s.store.Append(pending)
	if err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}

	s.logger.Info("document ingested", "file", filename, "source", source, "chunks", len(ids))
	return len(ids), nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/solenko/tutord/internal/config"
	"github.com/solenko/tutord/internal/index"
	"github.com/solenko/tutord/internal/ingest"
	"github.com/solenko/tutord/internal/llm"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Index a local PDF into the document store",
	Long: `Index a local PDF into the document store without going through the
HTTP API. The server does not need to be running; if it is, restart it to
pick up the new chunks.

Example:
  tutord ingest ./lecture-notes.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cfg.HasOpenAI() {
			return fmt.Errorf("TUTORD_OPENAI_API_KEY is required for embedding")
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		idx, err := index.Open(cfg.DataDir, cfg.EmbedDim)
		if err != nil {
			return fmt.Errorf("opening vector index: %w", err)
		}

		client := openai.NewClient(cfg.OpenAIAPIKey)
		embedder := llm.NewEmbedder(client, llm.EmbedderConfig{
			Model:   cfg.EmbedModel,
			Dim:     cfg.EmbedDim,
			Timeout: cfg.EmbedTimeout,
		})
		svc := ingest.New(embedder, idx, cfg.ChunkSize, cfg.ChunkOverlap)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		count, err := svc.IngestPDF(ctx, f, info.Size(), "cli", filepath.Base(path))
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		printSuccess("Indexed %s (%d chunks, %d total)", filepath.Base(path), count, idx.Count())
		return nil
	},
}

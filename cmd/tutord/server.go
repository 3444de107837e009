package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/solenko/tutord/internal/api"
	"github.com/solenko/tutord/internal/auth"
	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/config"
	"github.com/solenko/tutord/internal/index"
	"github.com/solenko/tutord/internal/ingest"
	"github.com/solenko/tutord/internal/llm"
	"github.com/solenko/tutord/internal/reminder"
	"github.com/solenko/tutord/internal/retrieval"
	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/studygen"
	"github.com/solenko/tutord/internal/tutor"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tutord server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tutord server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tutord system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tutord.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tutord version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if !cfg.HasOpenAI() {
		return fmt.Errorf("TUTORD_OPENAI_API_KEY is required to start the server")
	}

	// Check for an already-running instance via the health endpoint before
	// claiming the PID file.
	pidPath := pidFilePath(cfg.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tutord is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tutord is already running on port %d", cfg.Port)
		return fmt.Errorf("server already running on port %d", cfg.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	idx, err := index.Open(cfg.DataDir, cfg.EmbedDim)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	slog.Info("vector index loaded", "chunks", idx.Count(), "dim", idx.Dim())

	// Hosted model adapters.
	client := openai.NewClient(cfg.OpenAIAPIKey)
	embedder := llm.NewEmbedder(client, llm.EmbedderConfig{
		Model:   cfg.EmbedModel,
		Dim:     cfg.EmbedDim,
		Timeout: cfg.EmbedTimeout,
	})
	generator := llm.NewGenerator(client, llm.GeneratorConfig{
		Model:   cfg.ChatModel,
		Timeout: cfg.GenTimeout,
	})

	// RAG pipeline.
	retriever := retrieval.New(embedder, idx)
	ingestSvc := ingest.New(embedder, idx, cfg.ChunkSize, cfg.ChunkOverlap)
	comp := composer.New(cfg.MaxContextTokens)

	// Study services.
	authSvc := auth.New(store, slog.Default())
	studySvc := studygen.New(store, generator, slog.Default())
	sessions := tutor.NewSessionManager(cfg.SessionTTL)
	tutorSvc := tutor.NewService(store, generator, sessions, slog.Default())
	go sessions.Run(ctx)

	// Daily reminder, only when a relay is configured.
	if cfg.HasSMTP() {
		sender := reminder.NewSMTPSender(reminder.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		remSvc := reminder.NewService(store, sender, tutorSvc, slog.Default())
		sched, err := reminder.NewScheduler(cfg.ReminderAt, func(runCtx context.Context) {
			if err := remSvc.SendDue(runCtx); err != nil {
				slog.Error("reminder sweep failed", "error", err)
			}
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("configuring reminder: %w", err)
		}
		go sched.Run(ctx)
		slog.Info("daily reminder scheduled", "at", cfg.ReminderAt)
	} else {
		slog.Info("SMTP not configured, reminders disabled")
	}

	handler := api.NewHandler(api.Deps{
		Auth:       authSvc,
		Retriever:  retriever,
		Generator:  generator,
		Ingest:     ingestSvc,
		Composer:   comp,
		Study:      studySvc,
		Tutor:      tutorSvc,
		TopK:       cfg.TopK,
		FirstChunk: idx.FirstChunk,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	// MCP stdio server alongside HTTP.
	if cfg.MCPEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Retriever: retriever,
			Generator: generator,
			Composer:  comp,
			Store:     store,
			Tutor:     tutorSvc,
			TopK:      cfg.TopK,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "tutord listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tutord is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tutord (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tutord (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", orDefault(cfg.ChatModel, llm.DefaultChatModel))
	printStatus("Embed model", "%s", orDefault(cfg.EmbedModel, llm.DefaultEmbeddingModel))
	printStatus("Data dir", "%s", cfg.DataDir)

	if idx, err := index.Open(cfg.DataDir, cfg.EmbedDim); err == nil {
		printStatus("Indexed chunks", "%d", idx.Count())
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

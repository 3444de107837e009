package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/index"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxUploadSize = 20 << 20     // 20MB

// Retriever is the query side of the RAG pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.Chunk, error)
}

// Generator produces text from a system instruction and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Ingestor feeds uploaded documents into the index.
type Ingestor interface {
	IngestPDF(ctx context.Context, r io.ReaderAt, size int64, source, filename string) (int, error)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		chunks, err := deps.Retriever.Retrieve(r.Context(), req.Question, deps.TopK)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		answer, err := deps.Generator.Generate(r.Context(),
			composer.TutorAnswerSystem, deps.Composer.Answer(req.Question, chunks), 800, 0.2)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		writeJSON(w, askResponse{Answer: answer, Context: texts})
	}
}

func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		source := r.FormValue("source")
		if source == "" {
			source = "upload"
		}

		count, err := deps.Ingest.IngestPDF(r.Context(), file, header.Size, source, header.Filename)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, map[string]any{
			"message": "document indexed",
			"chunks":  count,
		})
	}
}

type questionsRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

func handleGenerateQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req questionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Count <= 0 {
			req.Count = 5
		}

		// Without a prompt, seed retrieval from the oldest indexed chunk so
		// questions still cover the corpus.
		if req.Prompt == "" {
			if deps.FirstChunk == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
				return
			}
			seed, ok := deps.FirstChunk()
			if !ok {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "no documents indexed yet")
				return
			}
			req.Prompt = seed.Text
		}

		chunks, err := deps.Retriever.Retrieve(r.Context(), req.Prompt, deps.TopK)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if len(chunks) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no documents indexed yet")
			return
		}

		questions, err := deps.Generator.Generate(r.Context(),
			composer.ExamSystem, deps.Composer.ExamQuestions(req.Count, chunks), 1000, 0.5)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]string{"questions": questions})
	}
}

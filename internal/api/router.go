// Package api exposes the daemon over HTTP (chi router, bearer auth) and
// over MCP stdio.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solenko/tutord/internal/auth"
	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/index"
	"github.com/solenko/tutord/internal/studygen"
	"github.com/solenko/tutord/internal/tutor"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Auth      *auth.Service
	Retriever Retriever
	Generator Generator
	Ingest    Ingestor
	Composer  *composer.Composer
	Study     *studygen.Service
	Tutor     *tutor.Service
	TopK      int

	// FirstChunk seeds prompt-less question generation. Optional.
	FirstChunk func() (index.Chunk, bool)
}

// NewHandler builds the full route tree. Signup, login, and health are open;
// everything else sits behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	if deps.TopK <= 0 {
		deps.TopK = 4
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/signup", handleSignup(deps.Auth))
	r.Post("/login", handleLogin(deps.Auth))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Auth))

		r.Post("/ask", handleAsk(deps))
		r.Post("/documents", handleUploadDocument(deps))
		r.Post("/questions", handleGenerateQuestions(deps))

		r.Route("/study", func(r chi.Router) {
			r.Post("/curricula", handleCreateCurriculum(deps.Study))
			r.Post("/plans", handleGenerateStudyPlan(deps.Study))
			r.Post("/content", handleGenerateContent(deps.Study))
			r.Get("/plans", handleListStudyPlans(deps.Study))
			r.Get("/flashcards", handleListFlashcards(deps.Study))
			r.Get("/worksheets", handleListWorksheets(deps.Study))
		})

		r.Route("/tutor", func(r chi.Router) {
			r.Post("/chat", handleTutorChat(deps.Tutor))
			r.Post("/mastered", handleTutorMastered(deps.Tutor))
			r.Get("/history", handleTutorHistory(deps.Tutor))
			r.Get("/progress", handleTutorProgress(deps.Tutor))
			r.Get("/next-topics", handleTutorNextTopics(deps.Tutor))
			r.Get("/revision-plan", handleTutorRevisionPlan(deps.Tutor))
		})
	})

	return r
}

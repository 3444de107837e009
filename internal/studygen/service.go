// Package studygen turns uploaded curricula into study plans, flashcards,
// and worksheets via hosted generation.
package studygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/extract"
	"github.com/solenko/tutord/internal/llm"
	"github.com/solenko/tutord/internal/storage"
)

// Generation kinds accepted by GenerateFromUpload.
const (
	KindFlashcards = "flashcards"
	KindWorksheet  = "worksheet"
)

const (
	defaultFlashcardCount = 10
	defaultWorksheetCount = 5
	maxItemCount          = 50

	genMaxTokens   = 1200
	genTemperature = 0.4
)

// Generator produces text from a system instruction and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Store is the slice of storage the service needs.
type Store interface {
	SaveCurriculum(c storage.Curriculum) error
	GetCurriculum(id string) (storage.Curriculum, error)
	UpdateStudyPlan(id, duration string, plan json.RawMessage) error
	ListCurricula(userID string) ([]storage.Curriculum, error)
	SaveFlashcards(cards []storage.Flashcard) error
	ListFlashcards(userID string) ([]storage.Flashcard, error)
	SaveWorksheets(sheets []storage.Worksheet) error
	ListWorksheets(userID string) ([]storage.Worksheet, error)
}

// Service owns study-artifact generation and persistence.
type Service struct {
	store  Store
	gen    Generator
	logger *slog.Logger
}

func New(store Store, gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gen: gen, logger: logger}
}

// CreateCurriculum saves an uploaded curriculum PDF's extracted text. A PDF
// whose text cannot be extracted still creates the record with empty content:
// the user can generate a plan later from a better copy, and the title alone
// is useful in listings.
func (s *Service) CreateCurriculum(ctx context.Context, userID, title string, pdf io.ReaderAt, size int64) (storage.Curriculum, error) {
	if title == "" {
		return storage.Curriculum{}, domain.New(domain.CodeValidation, "title is required")
	}

	text, err := extract.PDFText(pdf, size)
	if err != nil {
		s.logger.Warn("curriculum text extraction failed", "title", title, "error", err)
		text = ""
	}

	c := storage.Curriculum{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		ContentText: text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveCurriculum(c); err != nil {
		return storage.Curriculum{}, fmt.Errorf("saving curriculum: %w", err)
	}

	s.logger.Info("curriculum created", "id", c.ID, "title", title, "content_chars", len(text))
	return c, nil
}

// GenerateStudyPlan builds a day-by-day plan for the curriculum over the
// given duration and persists it on the curriculum record.
func (s *Service) GenerateStudyPlan(ctx context.Context, userID, curriculumID, duration string) (json.RawMessage, error) {
	if duration == "" {
		duration = "1 week"
	}

	c, err := s.ownedCurriculum(userID, curriculumID)
	if err != nil {
		return nil, err
	}
	if c.ContentText == "" {
		return nil, domain.New(domain.CodeEmptyDocument, "curriculum has no extracted content")
	}

	raw, err := s.gen.Generate(ctx, composer.StudyPlanSystem, composer.StudyPlan(duration, c.ContentText), genMaxTokens, genTemperature)
	if err != nil {
		return nil, err
	}

	var plan map[string][]string
	if err := llm.ParseJSONOutput(raw, &plan); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding study plan: %w", err)
	}

	if err := s.store.UpdateStudyPlan(c.ID, duration, encoded); err != nil {
		return nil, fmt.Errorf("saving study plan: %w", err)
	}

	s.logger.Info("study plan generated", "curriculum", c.ID, "duration", duration, "days", len(plan))
	return encoded, nil
}

// GenerateFlashcards creates count Q&A flashcards from study content and
// persists them under the given topic label.
func (s *Service) GenerateFlashcards(ctx context.Context, userID, topic, text string, count int) ([]storage.Flashcard, error) {
	count = clampCount(count, defaultFlashcardCount)
	if strings.TrimSpace(text) == "" {
		return nil, domain.New(domain.CodeEmptyDocument, "content has no extractable text")
	}

	raw, err := s.gen.Generate(ctx, composer.FlashcardSystem, composer.Flashcards(count, text), genMaxTokens, genTemperature)
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := llm.ParseJSONOutput(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, domain.New(domain.CodeMalformedGenerationOutput, "model returned no flashcards")
	}

	now := time.Now().UTC()
	cards := make([]storage.Flashcard, 0, len(parsed))
	for _, p := range parsed {
		if p.Question == "" {
			continue
		}
		cards = append(cards, storage.Flashcard{
			ID:        uuid.NewString(),
			UserID:    userID,
			Topic:     topic,
			Question:  p.Question,
			Answer:    p.Answer,
			CreatedAt: now,
		})
	}
	if err := s.store.SaveFlashcards(cards); err != nil {
		return nil, fmt.Errorf("saving flashcards: %w", err)
	}

	s.logger.Info("flashcards generated", "topic", topic, "count", len(cards))
	return cards, nil
}

// GenerateWorksheet creates count exam-style questions (answers left blank
// for the user) from study content and persists them.
func (s *Service) GenerateWorksheet(ctx context.Context, userID, topic, text string, count int) ([]storage.Worksheet, error) {
	count = clampCount(count, defaultWorksheetCount)
	if strings.TrimSpace(text) == "" {
		return nil, domain.New(domain.CodeEmptyDocument, "content has no extractable text")
	}

	raw, err := s.gen.Generate(ctx, composer.WorksheetSystem, composer.Worksheet(count, text), genMaxTokens, genTemperature)
	if err != nil {
		return nil, err
	}

	var questions []string
	if err := llm.ParseJSONOutput(raw, &questions); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.New(domain.CodeMalformedGenerationOutput, "model returned no questions")
	}

	now := time.Now().UTC()
	sheets := make([]storage.Worksheet, 0, len(questions))
	for _, q := range questions {
		if q == "" {
			continue
		}
		sheets = append(sheets, storage.Worksheet{
			ID:        uuid.NewString(),
			UserID:    userID,
			Topic:     topic,
			Question:  q,
			CreatedAt: now,
		})
	}
	if err := s.store.SaveWorksheets(sheets); err != nil {
		return nil, fmt.Errorf("saving worksheet: %w", err)
	}

	s.logger.Info("worksheet generated", "topic", topic, "count", len(sheets))
	return sheets, nil
}

// GenerateFromUpload extracts text from an uploaded PDF and dispatches on
// kind. Unknown kinds are a validation error so the HTTP layer reports them
// as a bad request. Unlike curriculum uploads, an unextractable file fails
// here: there is nothing to generate from.
func (s *Service) GenerateFromUpload(ctx context.Context, userID, topic, kind string, pdf io.ReaderAt, size int64, count int) (any, error) {
	switch kind {
	case KindFlashcards, KindWorksheet:
	default:
		return nil, domain.Newf(domain.CodeValidation, "unknown generation kind %q", kind)
	}

	text, err := extract.PDFText(pdf, size)
	if err != nil {
		return nil, err
	}

	if kind == KindFlashcards {
		return s.GenerateFlashcards(ctx, userID, topic, text, count)
	}
	return s.GenerateWorksheet(ctx, userID, topic, text, count)
}

func (s *Service) ListCurricula(userID string) ([]storage.Curriculum, error) {
	return s.store.ListCurricula(userID)
}

func (s *Service) ListFlashcards(userID string) ([]storage.Flashcard, error) {
	return s.store.ListFlashcards(userID)
}

func (s *Service) ListWorksheets(userID string) ([]storage.Worksheet, error) {
	return s.store.ListWorksheets(userID)
}

// ownedCurriculum loads the curriculum and hides other users' records behind
// not-found.
func (s *Service) ownedCurriculum(userID, curriculumID string) (storage.Curriculum, error) {
	c, err := s.store.GetCurriculum(curriculumID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Curriculum{}, domain.Newf(domain.CodeNotFound, "curriculum %s not found", curriculumID)
		}
		return storage.Curriculum{}, fmt.Errorf("loading curriculum: %w", err)
	}
	if c.UserID != userID {
		return storage.Curriculum{}, domain.Newf(domain.CodeNotFound, "curriculum %s not found", curriculumID)
	}
	return c, nil
}

func clampCount(count, fallback int) int {
	if count <= 0 {
		return fallback
	}
	if count > maxItemCount {
		return maxItemCount
	}
	return count
}

// Package tutor implements the interactive chat tutor: classified questions,
// a learning log with mastery tracking, revision plans, and next-topic
// suggestions over a prerequisite graph.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/llm"
	"github.com/solenko/tutord/internal/storage"
)

const (
	chatMaxTokens    = 800
	chatTemperature  = 0.7
	classifyTokens   = 20
	revisionTokens   = 600
	fallbackTopic    = "General"
	staleAttemptsCap = 3 * 24 * time.Hour
)

// Generator is the chat-capable slice of the LLM layer.
type Generator interface {
	Generate(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float32) (string, error)
}

// Store is the slice of storage the tutor needs.
type Store interface {
	AppendLearningEntry(e storage.LearningEntry) error
	UpdateLearningStatus(userID, question, status string, at time.Time) error
	ListLearningEntries(userID string) ([]storage.LearningEntry, error)
}

// Service runs the chat tutor.
type Service struct {
	store    Store
	gen      Generator
	sessions *SessionManager
	logger   *slog.Logger
	now      func() time.Time
}

// ChatResult is one turn of a tutoring conversation.
type ChatResult struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Reply     string `json:"reply"`
}

func NewService(store Store, gen Generator, sessions *SessionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gen: gen, sessions: sessions, logger: logger, now: time.Now}
}

// Chat handles one user message: classifies it into a topic, logs the
// attempt, and replies with the session's conversation as context. An empty
// sessionID starts a new session; an expired or foreign one does too rather
// than failing the turn.
func (s *Service) Chat(ctx context.Context, userID, sessionID, text string) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatResult{}, domain.New(domain.CodeValidation, "message must not be empty")
	}

	sess, ok := s.sessions.Get(sessionID, userID)
	if !ok {
		sess = s.sessions.Create(userID)
	}

	topic := s.classify(ctx, text)
	now := s.now().UTC()

	entry := storage.LearningEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Question:    text,
		Topic:       topic,
		Difficulty:  "medium",
		Status:      storage.StatusAttempted,
		LastAttempt: now,
	}
	if err := s.store.AppendLearningEntry(entry); err != nil {
		return ChatResult{}, fmt.Errorf("logging attempt: %w", err)
	}

	msgs := make([]llm.Message, 0, len(sess.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: composer.ChatTutorSystem})
	msgs = append(msgs, sess.History...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := s.gen.Chat(ctx, msgs, chatMaxTokens, chatTemperature)
	if err != nil {
		return ChatResult{}, err
	}

	s.sessions.Append(sess.ID,
		llm.Message{Role: llm.RoleUser, Content: text},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)

	s.logger.Info("tutor turn", "session", sess.ID, "topic", topic)
	return ChatResult{SessionID: sess.ID, Topic: topic, Reply: reply}, nil
}

// MarkMastered records that the user has mastered a logged question.
func (s *Service) MarkMastered(userID, question string) error {
	if strings.TrimSpace(question) == "" {
		return domain.New(domain.CodeValidation, "question must not be empty")
	}
	return s.store.UpdateLearningStatus(userID, question, storage.StatusMastered, s.now().UTC())
}

// History returns the user's learning log, newest first.
func (s *Service) History(userID string) ([]storage.LearningEntry, error) {
	return s.store.ListLearningEntries(userID)
}

// TopicProgress summarizes one topic's attempts.
type TopicProgress struct {
	Topic     string `json:"topic"`
	Attempted int    `json:"attempted"`
	Mastered  int    `json:"mastered"`
}

// ProgressSummary aggregates the learning log per topic, sorted by topic.
func (s *Service) ProgressSummary(userID string) ([]TopicProgress, error) {
	entries, err := s.store.ListLearningEntries(userID)
	if err != nil {
		return nil, fmt.Errorf("listing learning log: %w", err)
	}

	byTopic := make(map[string]*TopicProgress)
	for _, e := range entries {
		p, ok := byTopic[e.Topic]
		if !ok {
			p = &TopicProgress{Topic: e.Topic}
			byTopic[e.Topic] = p
		}
		p.Attempted++
		if e.Status == storage.StatusMastered {
			p.Mastered++
		}
	}

	out := make([]TopicProgress, 0, len(byTopic))
	for _, p := range byTopic {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

// RevisionPlan asks the model for a short revision schedule over the user's
// weak topics. Weak means any logged question not yet mastered, or mastered
// but untouched for over three days. With no weak topics it returns a static
// all-caught-up message without calling the model.
func (s *Service) RevisionPlan(ctx context.Context, userID string) (string, error) {
	entries, err := s.store.ListLearningEntries(userID)
	if err != nil {
		return "", fmt.Errorf("listing learning log: %w", err)
	}

	weak := weakTopics(entries, s.now().UTC())
	if len(weak) == 0 {
		return "You're all caught up. Nothing needs revision right now.", nil
	}

	prompt := fmt.Sprintf("Create a 2-day revision plan for these weak topics: %s. Keep it short and concrete.",
		strings.Join(weak, ", "))
	return s.gen.Generate(ctx, composer.ChatTutorSystem, prompt, revisionTokens, chatTemperature)
}

// NextTopics suggests topics unlocked by what the user has mastered.
func (s *Service) NextTopics(userID string) ([]string, error) {
	entries, err := s.store.ListLearningEntries(userID)
	if err != nil {
		return nil, fmt.Errorf("listing learning log: %w", err)
	}

	mastered := make(map[string]bool)
	for _, e := range entries {
		if e.Status == storage.StatusMastered && KnownTopic(e.Topic) {
			mastered[e.Topic] = true
		}
	}
	return NextTopics(mastered), nil
}

// classify maps a question to a topic, falling back to a generic bucket when
// the model is unavailable. Classification failures never fail the turn.
func (s *Service) classify(ctx context.Context, text string) string {
	out, err := s.gen.Generate(ctx, composer.TopicClassifySystem, composer.ClassifyTopic(text), classifyTokens, 0)
	if err != nil {
		s.logger.Warn("topic classification failed", "error", err)
		return fallbackTopic
	}
	topic := strings.TrimSpace(strings.Trim(out, `"`))
	if topic == "" {
		return fallbackTopic
	}
	return topic
}

func weakTopics(entries []storage.LearningEntry, now time.Time) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		stale := now.Sub(e.LastAttempt) > staleAttemptsCap
		if e.Status == storage.StatusMastered && !stale {
			continue
		}
		if seen[e.Topic] {
			continue
		}
		seen[e.Topic] = true
		out = append(out, e.Topic)
	}
	sort.Strings(out)
	return out
}

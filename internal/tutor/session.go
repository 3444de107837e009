package tutor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solenko/tutord/internal/llm"
)

const (
	defaultSessionTTL = 30 * time.Minute
	janitorInterval   = time.Minute

	// maxHistoryMessages bounds the chat context sent to the model.
	maxHistoryMessages = 20
)

// Session is one user's in-memory chat thread.
type Session struct {
	ID         string
	UserID     string
	History    []llm.Message
	LastActive time.Time
}

// SessionManager keeps chat sessions in memory and evicts idle ones. Sessions
// are deliberately not persisted: a restart starts conversations fresh, while
// the learning log in SQLite keeps the durable record.
type SessionManager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates a manager. ttl <= 0 uses the default.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a fresh session for the user.
func (m *SessionManager) Create(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		LastActive: m.now(),
	}
	m.sessions[s.ID] = s
	return s
}

// Get returns the session if it exists, belongs to the user, and has not
// expired. A hit refreshes the TTL.
func (m *SessionManager) Get(id, userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, false
	}
	if m.now().Sub(s.LastActive) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	s.LastActive = m.now()
	return s, true
}

// Append records a user/assistant exchange on the session, trimming the
// oldest turns past the history cap.
func (m *SessionManager) Append(id string, msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.History = append(s.History, msgs...)
	if n := len(s.History); n > maxHistoryMessages {
		s.History = append([]llm.Message(nil), s.History[n-maxHistoryMessages:]...)
	}
	s.LastActive = m.now()
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *SessionManager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

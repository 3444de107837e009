package tutor

import (
	"testing"
	"time"

	"github.com/solenko/tutord/internal/llm"
)

func TestSessionManager_CreateAndGet(t *testing.T) {
	m := NewSessionManager(time.Minute)
	s := m.Create("u1")

	got, ok := m.Get(s.ID, "u1")
	if !ok || got.ID != s.ID {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if _, ok := m.Get(s.ID, "someone-else"); ok {
		t.Errorf("session leaked to another user")
	}
	if _, ok := m.Get("missing", "u1"); ok {
		t.Errorf("unknown id returned a session")
	}
}

func TestSessionManager_TTLExpiry(t *testing.T) {
	m := NewSessionManager(time.Minute)
	clock := time.Now()
	m.now = func() time.Time { return clock }

	s := m.Create("u1")

	clock = clock.Add(30 * time.Second)
	if _, ok := m.Get(s.ID, "u1"); !ok {
		t.Fatalf("session expired early")
	}

	// The hit above refreshed the TTL; expiry counts from last activity.
	clock = clock.Add(61 * time.Second)
	if _, ok := m.Get(s.ID, "u1"); ok {
		t.Errorf("expired session still returned")
	}
	if m.Len() != 0 {
		t.Errorf("expired session not removed, Len = %d", m.Len())
	}
}

func TestSessionManager_Sweep(t *testing.T) {
	m := NewSessionManager(time.Minute)
	clock := time.Now()
	m.now = func() time.Time { return clock }

	m.Create("u1")
	m.Create("u2")
	clock = clock.Add(2 * time.Minute)
	fresh := m.Create("u3")

	m.sweep()
	if m.Len() != 1 {
		t.Fatalf("Len after sweep = %d, want 1", m.Len())
	}
	if _, ok := m.Get(fresh.ID, "u3"); !ok {
		t.Errorf("fresh session swept")
	}
}

func TestSessionManager_AppendTrimsHistory(t *testing.T) {
	m := NewSessionManager(time.Minute)
	s := m.Create("u1")

	for i := 0; i < maxHistoryMessages; i++ {
		m.Append(s.ID, llm.Message{Role: llm.RoleUser, Content: "old"})
	}
	m.Append(s.ID,
		llm.Message{Role: llm.RoleUser, Content: "newest question"},
		llm.Message{Role: llm.RoleAssistant, Content: "newest answer"},
	)

	got, _ := m.Get(s.ID, "u1")
	if len(got.History) != maxHistoryMessages {
		t.Fatalf("history length = %d, want %d", len(got.History), maxHistoryMessages)
	}
	last := got.History[len(got.History)-1]
	if last.Content != "newest answer" {
		t.Errorf("newest turn trimmed: %+v", last)
	}
}

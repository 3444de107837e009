package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/tutor"
)

type fakeSender struct {
	sent   []string // recipient addresses
	bodies []string
	fail   map[string]bool
}

func (f *fakeSender) Send(to, _, body string) error {
	if f.fail[to] {
		return errors.New("relay rejected")
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedActiveUser(t *testing.T, store *storage.Store, id, email string) {
	t.Helper()
	err := store.CreateUser(storage.User{ID: id, Username: id, PasswordHash: "x", Email: email, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	err = store.AppendLearningEntry(storage.LearningEntry{
		ID: "log-" + id, UserID: id, Question: "q", Topic: "Basics", LastAttempt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AppendLearningEntry: %v", err)
	}
}

func TestSendDue_MailsActiveUsersOncePerDay(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "alice", "alice@example.com")
	seedActiveUser(t, store, "bob", "bob@example.com")

	// A user with no learning activity gets nothing.
	if err := store.CreateUser(storage.User{ID: "idle", Username: "idle", PasswordHash: "x", Email: "idle@example.com", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	sender := &fakeSender{}
	svc := NewService(store, sender, nil, nil)

	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent = %v, want alice and bob", sender.sent)
	}

	// Second sweep on the same day is a no-op.
	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("second SendDue: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Errorf("same-day re-send: %v", sender.sent)
	}
}

func TestSendDue_NextDaySendsAgain(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "alice", "alice@example.com")

	sender := &fakeSender{}
	svc := NewService(store, sender, nil, nil)

	day := time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }
	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("day one: %v", err)
	}

	day = day.AddDate(0, 0, 1)
	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("day two: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Errorf("sent = %v, want one per day", sender.sent)
	}
}

func TestSendDue_OneFailureDoesNotBlockOthers(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "alice", "alice@example.com")
	seedActiveUser(t, store, "bob", "bob@example.com")

	sender := &fakeSender{fail: map[string]bool{"alice@example.com": true}}
	svc := NewService(store, sender, nil, nil)

	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "bob@example.com" {
		t.Errorf("sent = %v, want just bob", sender.sent)
	}

	// Sweep still counts as done for the day.
	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("second SendDue: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("failed recipient retried same day: %v", sender.sent)
	}
}

func TestSendDue_SkipsUsersWithoutEmail(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "ghost", "")

	sender := &fakeSender{}
	svc := NewService(store, sender, nil, nil)
	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}

type fakeProgress struct {
	summary []tutor.TopicProgress
	err     error
}

func (f *fakeProgress) ProgressSummary(string) ([]tutor.TopicProgress, error) {
	return f.summary, f.err
}

func TestSendDue_BodyIncludesProgress(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "alice", "alice@example.com")

	sender := &fakeSender{}
	progress := &fakeProgress{summary: []tutor.TopicProgress{
		{Topic: "Loops", Attempted: 3, Mastered: 1},
	}}
	svc := NewService(store, sender, progress, nil)

	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if len(sender.bodies) != 1 {
		t.Fatalf("bodies = %d, want 1", len(sender.bodies))
	}
	body := sender.bodies[0]
	if !strings.Contains(body, "Hi alice") || !strings.Contains(body, "Loops: 3 attempted, 1 mastered") {
		t.Errorf("body = %q", body)
	}
}

func TestSendDue_ProgressFailureStillMails(t *testing.T) {
	store := newTestStore(t)
	seedActiveUser(t, store, "alice", "alice@example.com")

	sender := &fakeSender{}
	svc := NewService(store, sender, &fakeProgress{err: errors.New("db gone")}, nil)

	if err := svc.SendDue(context.Background()); err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent = %v, want mail despite summary failure", sender.sent)
	}
}

func TestScheduler_NextFire(t *testing.T) {
	s, err := NewScheduler("18:30", func(context.Context) {}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before trigger fires today",
			time.Date(2026, 8, 29, 10, 0, 0, 0, loc),
			time.Date(2026, 8, 29, 18, 30, 0, 0, loc),
		},
		{
			"after trigger fires tomorrow",
			time.Date(2026, 8, 29, 19, 0, 0, 0, loc),
			time.Date(2026, 8, 30, 18, 30, 0, 0, loc),
		},
		{
			"exactly at trigger fires tomorrow",
			time.Date(2026, 8, 29, 18, 30, 0, 0, loc),
			time.Date(2026, 8, 30, 18, 30, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.nextFire(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextFire(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestNewScheduler_RejectsBadTime(t *testing.T) {
	if _, err := NewScheduler("25:99", func(context.Context) {}, nil); err == nil {
		t.Errorf("expected error for invalid trigger time")
	}
}

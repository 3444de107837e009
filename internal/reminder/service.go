package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/tutor"
)

// lastSentKey tracks the last date a reminder sweep completed, so a restart
// after the trigger time does not re-send the same day's mail.
const lastSentKey = "reminder_last_sent"

const mailSubject = "Time to study!"

// Store is the slice of storage the sweep needs.
type Store interface {
	ListUsersWithLearningEntries() ([]storage.User, error)
	GetAppState(key string) (string, error)
	SetAppState(key, value string) error
}

// ProgressReporter supplies the per-topic summary included in each mail.
type ProgressReporter interface {
	ProgressSummary(userID string) ([]tutor.TopicProgress, error)
}

// Service runs the daily reminder sweep.
type Service struct {
	store    Store
	sender   Sender
	progress ProgressReporter
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, sender Sender, progress ProgressReporter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sender: sender, progress: progress, logger: logger, now: time.Now}
}

// SendDue mails every user with logged activity, at most once per calendar
// day. A send failure for one user is logged and does not block the rest;
// the day is marked done only after the sweep ran, so a mid-sweep crash
// retries on the next trigger.
func (s *Service) SendDue(ctx context.Context) error {
	today := s.now().UTC().Format("2006-01-02")

	last, err := s.store.GetAppState(lastSentKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("reading reminder state: %w", err)
	}
	if last == today {
		s.logger.Debug("reminders already sent today", "date", today)
		return nil
	}

	users, err := s.store.ListUsersWithLearningEntries()
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}

	sent := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if u.Email == "" {
			continue
		}
		if err := s.sender.Send(u.Email, mailSubject, s.composeBody(u)); err != nil {
			s.logger.Warn("reminder send failed", "user", u.Username, "error", err)
			continue
		}
		sent++
	}

	if err := s.store.SetAppState(lastSentKey, today); err != nil {
		return fmt.Errorf("recording reminder state: %w", err)
	}

	s.logger.Info("reminder sweep complete", "date", today, "sent", sent, "eligible", len(users))
	return nil
}

// composeBody builds the plain-text mail: a nudge plus the user's per-topic
// progress. A summary failure degrades to the nudge alone.
func (s *Service) composeBody(u storage.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThis is your daily reminder to keep your streak going.\n", u.Username)

	if s.progress != nil {
		summary, err := s.progress.ProgressSummary(u.ID)
		if err != nil {
			s.logger.Warn("progress summary failed", "user", u.Username, "error", err)
		} else if len(summary) > 0 {
			b.WriteString("\nYour progress so far:\n")
			for _, p := range summary {
				fmt.Fprintf(&b, "  - %s: %d attempted, %d mastered\n", p.Topic, p.Attempted, p.Mastered)
			}
		}
	}

	b.WriteString("\nOpen your tutor and review a weak topic today.\n")
	return b.String()
}

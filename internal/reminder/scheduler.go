// Package reminder sends the daily study nudge to users with logged
// activity.
package reminder

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler fires a callback once per day at a fixed local wall-clock time.
type Scheduler struct {
	at     string // "15:04"
	fn     func(ctx context.Context)
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler validates the HH:MM trigger time and wraps fn.
func NewScheduler(at string, fn func(ctx context.Context), logger *slog.Logger) (*Scheduler, error) {
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{at: at, fn: fn, logger: logger, now: time.Now}, nil
}

// Run fires fn at the trigger time every day until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(s.nextFire(s.now()))
		s.logger.Debug("reminder scheduled", "at", s.at, "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fn(ctx)
		}
	}
}

// nextFire returns the next occurrence of the trigger time strictly after
// now.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	t, _ := time.Parse("15:04", s.at)
	fire := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("already exists")

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Curriculum struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Title       string          `json:"title"`
	Duration    string          `json:"duration,omitempty"`
	ContentText string          `json:"-"`
	StudyPlan   json.RawMessage `json:"study_plan,omitempty"` // generated plan, JSON as stored
	CreatedAt   time.Time       `json:"created_at"`
}

type Flashcard struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Topic     string    `json:"topic"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type Worksheet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Topic     string    `json:"topic"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"` // blank until the user fills it in
	CreatedAt time.Time `json:"created_at"`
}

// Learning log statuses.
const (
	StatusUnattempted = "unattempted"
	StatusAttempted   = "attempted"
	StatusMastered    = "mastered"
)

type LearningEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Question    string    `json:"question"`
	Topic       string    `json:"topic"`
	Difficulty  string    `json:"difficulty"`
	Status      string    `json:"status"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Package storage persists user accounts, study artifacts, and the learning
// log in SQLite.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for users, tokens, study
// artifacts, and the learning log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "tutord.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies any embedded SQL migrations that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// --- Users and tokens ---

func (s *Store) CreateUser(u User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Email, u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("username %q: %w", u.Username, ErrDuplicate)
	}
	return err
}

func (s *Store) GetUserByUsername(username string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`SELECT id, username, password_hash, email, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (s *Store) GetUserByID(id string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`SELECT id, username, password_hash, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// SaveToken records a bearer token hash for a user.
func (s *Store) SaveToken(hash, userID string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO tokens (hash, user_id, created_at) VALUES (?, ?, ?)`,
		hash, userID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetUserIDByTokenHash resolves a token hash to its user.
func (s *Store) GetUserIDByTokenHash(hash string) (string, error) {
	var userID string
	err := s.db.QueryRow(`SELECT user_id FROM tokens WHERE hash = ?`, hash).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return userID, err
}

// --- Curricula ---

func (s *Store) SaveCurriculum(c Curriculum) error {
	_, err := s.db.Exec(`INSERT INTO curricula (id, user_id, title, duration, content_text, study_plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Duration, c.ContentText, string(c.StudyPlan), c.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetCurriculum(id string) (Curriculum, error) {
	var c Curriculum
	var plan, createdAt string
	err := s.db.QueryRow(`SELECT id, user_id, title, duration, content_text, study_plan, created_at
		FROM curricula WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Duration, &c.ContentText, &plan, &createdAt)
	if err == sql.ErrNoRows {
		return Curriculum{}, ErrNotFound
	}
	if err != nil {
		return Curriculum{}, err
	}
	if plan != "" {
		c.StudyPlan = json.RawMessage(plan)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// UpdateStudyPlan stores a generated plan and the duration it was built for.
func (s *Store) UpdateStudyPlan(id, duration string, plan json.RawMessage) error {
	res, err := s.db.Exec(`UPDATE curricula SET duration = ?, study_plan = ? WHERE id = ?`,
		duration, string(plan), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCurricula(userID string) ([]Curriculum, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, duration, content_text, study_plan, created_at
		FROM curricula WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Curriculum
	for rows.Next() {
		var c Curriculum
		var plan, createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Duration, &c.ContentText, &plan, &createdAt); err != nil {
			return nil, err
		}
		if plan != "" {
			c.StudyPlan = json.RawMessage(plan)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Flashcards and worksheets ---

func (s *Store) SaveFlashcards(cards []Flashcard) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning flashcard insert: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO flashcards (id, user_id, topic, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing flashcard insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range cards {
		if _, err := stmt.Exec(f.ID, f.UserID, f.Topic, f.Question, f.Answer, f.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting flashcard %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListFlashcards(userID string) ([]Flashcard, error) {
	rows, err := s.db.Query(`SELECT id, user_id, topic, question, answer, created_at
		FROM flashcards WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Flashcard
	for rows.Next() {
		var f Flashcard
		var createdAt string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Topic, &f.Question, &f.Answer, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTime(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) SaveWorksheets(sheets []Worksheet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning worksheet insert: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO worksheets (id, user_id, topic, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing worksheet insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range sheets {
		if _, err := stmt.Exec(w.ID, w.UserID, w.Topic, w.Question, w.Answer, w.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting worksheet %s: %w", w.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListWorksheets(userID string) ([]Worksheet, error) {
	rows, err := s.db.Query(`SELECT id, user_id, topic, question, answer, created_at
		FROM worksheets WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Worksheet
	for rows.Next() {
		var w Worksheet
		var createdAt string
		if err := rows.Scan(&w.ID, &w.UserID, &w.Topic, &w.Question, &w.Answer, &createdAt); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTime(createdAt)
		out = append(out, w)
	}
	return out, rows.Err()
}

// --- Learning log ---

func (s *Store) AppendLearningEntry(e LearningEntry) error {
	status := e.Status
	if status == "" {
		status = StatusUnattempted
	}
	_, err := s.db.Exec(`INSERT INTO learning_log (id, user_id, question, topic, difficulty, status, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Question, e.Topic, e.Difficulty, status, e.LastAttempt.UTC().Format(time.RFC3339))
	return err
}

// UpdateLearningStatus marks every log entry for the question with the new
// status and stamps the attempt time.
func (s *Store) UpdateLearningStatus(userID, question, status string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE learning_log SET status = ?, last_attempt = ? WHERE user_id = ? AND question = ?`,
		status, at.UTC().Format(time.RFC3339), userID, question)
	return err
}

func (s *Store) ListLearningEntries(userID string) ([]LearningEntry, error) {
	rows, err := s.db.Query(`SELECT id, user_id, question, topic, difficulty, status, last_attempt
		FROM learning_log WHERE user_id = ? ORDER BY last_attempt DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LearningEntry
	for rows.Next() {
		var e LearningEntry
		var lastAttempt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Question, &e.Topic, &e.Difficulty, &e.Status, &lastAttempt); err != nil {
			return nil, err
		}
		e.LastAttempt = parseTime(lastAttempt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListUsersWithLearningEntries returns the distinct users that have logged
// activity, for the daily reminder sweep.
func (s *Store) ListUsersWithLearningEntries() ([]User, error) {
	rows, err := s.db.Query(`SELECT DISTINCT u.id, u.username, u.password_hash, u.email, u.created_at
		FROM users u JOIN learning_log l ON l.user_id = u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- App state ---

// SetAppState stores a small key/value pair (e.g. last reminder date).
func (s *Store) SetAppState(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetAppState reads a state value; missing keys return ErrNotFound.
func (s *Store) GetAppState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// parseTime decodes an RFC3339 timestamp, tolerating empty values.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

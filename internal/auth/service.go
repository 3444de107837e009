// Package auth handles account signup, login, and bearer-token resolution.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/solenko/tutord/internal/domain"
	"github.com/solenko/tutord/internal/storage"
)

// UserStore is the subset of storage the service needs.
type UserStore interface {
	CreateUser(u storage.User) error
	GetUserByUsername(username string) (storage.User, error)
	GetUserByID(id string) (storage.User, error)
	SaveToken(hash, userID string) error
	GetUserIDByTokenHash(hash string) (string, error)
}

// Service implements the account lifecycle. Passwords are stored as bcrypt
// hashes; tokens are stored as SHA-256 hashes so a leaked database does not
// leak usable credentials.
type Service struct {
	store  UserStore
	logger *slog.Logger
}

func New(store UserStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Signup creates an account and returns a fresh bearer token.
func (s *Service) Signup(username, password, email string) (storage.User, string, error) {
	if username == "" || password == "" {
		return storage.User{}, "", domain.New(domain.CodeValidation, "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, "", fmt.Errorf("hashing password: %w", err)
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return storage.User{}, "", domain.Newf(domain.CodeAlreadyExists, "username %q is taken", username)
		}
		return storage.User{}, "", fmt.Errorf("creating user: %w", err)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return storage.User{}, "", err
	}

	s.logger.Info("user signed up", "username", username)
	return user, token, nil
}

// Login verifies credentials and returns a fresh bearer token. Bad
// credentials are a validation error, not unauthorized: the caller is not
// presenting a token yet.
func (s *Service) Login(username, password string) (storage.User, string, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, "", domain.New(domain.CodeValidation, "invalid credentials")
		}
		return storage.User{}, "", fmt.Errorf("looking up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return storage.User{}, "", domain.New(domain.CodeValidation, "invalid credentials")
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return storage.User{}, "", err
	}

	s.logger.Info("user logged in", "username", username)
	return user, token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(token string) (storage.User, error) {
	if token == "" {
		return storage.User{}, domain.ErrUnauthorized
	}

	userID, err := s.store.GetUserIDByTokenHash(hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, domain.ErrUnauthorized
		}
		return storage.User{}, fmt.Errorf("resolving token: %w", err)
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, domain.ErrUnauthorized
		}
		return storage.User{}, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.store.SaveToken(hashToken(token), userID); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Package auth implements registration, login and opaque bearer-token
// sessions. Tokens are random, returned once, and stored only as hashes.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"spendi/internal/core"
	"spendi/internal/storage"
)

const (
	minPasswordLength = 8
	tokenBytes        = 32

	// DefaultSessionTTL is how long a login stays valid.
	DefaultSessionTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrEmailTaken         = errors.New("email already registered")
)

type Service struct {
	repo *storage.Repository
	ttl  time.Duration
}

// NewService creates an auth service. ttl <= 0 uses DefaultSessionTTL.
func NewService(repo *storage.Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{repo: repo, ttl: ttl}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minPasswordLength {
		return core.User{}, ErrWeakPassword
	}

	candidate := core.User{Email: email, Name: strings.TrimSpace(name)}
	if err := candidate.Validate(); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, candidate.Email, candidate.Name, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return core.User{}, ErrEmailTaken
		}
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a session, returning the user and
// the opaque bearer token. The token cannot be recovered later.
func (s *Service) Login(ctx context.Context, email, password string) (core.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn a comparison anyway so unknown emails cost the same.
			bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))
			return core.User{}, "", ErrInvalidCredentials
		}
		return core.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, "", ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return core.User{}, "", fmt.Errorf("generate session token: %w", err)
	}

	if err := s.repo.CreateSession(ctx, hashToken(token), user.ID, time.Now().Add(s.ttl)); err != nil {
		return core.User{}, "", err
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return user, token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetSessionUser(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, err
	}
	return user, nil
}

// Logout closes the session behind a token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, hashToken(token))
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

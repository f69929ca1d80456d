// Package services – AuthService
//
// This file implements AuthService, which handles account registration and
// login. It hashes passwords with bcrypt, enforces unique emails, and issues
// bearer tokens through the injected token issuer. Login reports one
// uniform error for unknown emails and wrong passwords so failures do not
// leak account existence.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/auth"
	"github.com/velora-ai/chat-backend/internal/domain"
)

// UserRepo defines the repository contract required by AuthService.
type UserRepo interface {
	// CreateUser inserts a new user with an already-hashed password.
	CreateUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string) (*domain.User, error)

	// GetUserByEmail fetches a user by login email.
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
}

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthService provides registration and login on top of the user repository
// and the token manager.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository.
	Repo UserRepo
	// Tokens issues bearer tokens.
	Tokens TokenIssuer

	// MinPasswordLen rejects passwords shorter than this many bytes.
	MinPasswordLen int
}

// NewAuthService constructs an AuthService with an 8-character password floor.
func NewAuthService(db *gorm.DB, r UserRepo, tokens TokenIssuer) *AuthService {
	return &AuthService{
		DB:             db,
		Repo:           r,
		Tokens:         tokens,
		MinPasswordLen: 8,
	}
}

// Register creates a new account and returns the user plus a fresh token.
// Emails are lowercased before storage and must be unused.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, "", ErrInvalidRegistration
	}
	if len(password) < s.MinPasswordLen {
		return nil, "", ErrInvalidRegistration
	}

	if _, err := s.Repo.GetUserByEmail(ctx, s.DB, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	u, err := s.Repo.CreateUser(ctx, s.DB, username, email, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the user plus a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

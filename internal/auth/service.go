// Package auth implements credential verification and session login.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/shared"
)

// Directory is the slice of the user directory consumed for login.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (directory.User, string, error)
}

// Service verifies credentials against the user directory.
type Service struct {
	dir Directory
}

// NewService constructs an auth Service.
func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// Authenticate verifies the email/password pair and returns the user.
// Unknown emails, wrong passwords and deactivated accounts all surface as
// shared.ErrInvalidCredentials so the response leaks nothing about which
// part failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (directory.User, error) {
	user, hash, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return directory.User{}, shared.ErrInvalidCredentials
		}
		return directory.User{}, fmt.Errorf("auth: authenticate: %w", err)
	}
	if !user.IsActive {
		return directory.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return directory.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword produces a bcrypt hash for seeding and user provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

package users

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/gstledger/gstledger/internal/shared"
)

// Service answers the two questions collaborators ask of the
// directory: are these credentials good, and is this user active.
type Service struct {
	repo Repository
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate checks credentials and the active flag. Inactive users
// fail the same way bad credentials do.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.Active {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	user.PasswordHash = ""
	return user, nil
}

// ActiveDistrict returns the district an active user belongs to.
// Admin users have no district scope and return an empty string.
func (s *Service) ActiveDistrict(ctx context.Context, username string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", shared.ErrInvalidCredentials
	}
	return user.District, nil
}

// HashPassword produces a bcrypt hash for seeding and admin tooling.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

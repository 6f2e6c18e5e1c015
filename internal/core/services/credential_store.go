package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

// CredentialStore adapts the user repository to what the token lifecycle
// needs: unique email lookup and password verification.
type CredentialStore struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(repo ports.UserRepository, hasher ports.PasswordHasher) *CredentialStore {
	return &CredentialStore{
		repo:   repo,
		hasher: hasher,
	}
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *CredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// VerifyPassword compares against a throwaway hash when user is nil so an
// unknown email costs the same as a wrong password.
func (s *CredentialStore) VerifyPassword(user *domain.User, candidate string) bool {
	if user == nil {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
		})
		s.hasher.Compare(s.dummyHash, candidate)
		return false
	}
	return s.hasher.Compare(user.PasswordHash, candidate)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

const publishTimeout = 5 * time.Second

type UserService struct {
	repo      ports.UserRepository
	hasher    ports.PasswordHasher
	publisher ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserService(repo ports.UserRepository, hasher ports.PasswordHasher, publisher ports.EventPublisher, logger *slog.Logger) ports.UserService {
	return &UserService{
		repo:      repo,
		hasher:    hasher,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *UserService) Create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.emit(ctx, domain.EventUserCreated, user.ID, user.PublicProfile())
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, input ports.UpdateUserInput) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		if email != user.Email {
			other, err := s.repo.GetByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if other != nil && other.ID != user.ID {
				return nil, domain.ErrEmailTaken
			}
			user.Email = email
		}
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.emit(ctx, domain.EventUserUpdated, user.ID, user.PublicProfile())
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return domain.ErrUserNotFound
	}

	s.emit(ctx, domain.EventUserDeleted, id, domain.UserDeletedPayload{ID: id.String()})
	return nil
}

// emit runs after the write has committed. A failed publish is logged and
// dropped; the caller still sees success.
func (s *UserService) emit(ctx context.Context, eventType domain.EventType, subject uuid.UUID, payload any) {
	log := s.logger.With("event_type", eventType, "subject_id", subject)

	event, err := domain.NewLifecycleEvent(eventType, subject.String(), payload, s.now())
	if err != nil {
		log.Error("failed to build lifecycle event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, string(eventType), event); err != nil {
		log.Error("failed to publish lifecycle event", "event_id", event.ID, "error", err)
		return
	}
	log.Debug("published lifecycle event", "event_id", event.ID)
}

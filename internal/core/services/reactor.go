package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

// ConsistencyReactor applies the product service's side of identity
// lifecycle changes. Every reaction is idempotent and none of them publish.
type ConsistencyReactor struct {
	products ports.ProductRepository
	logger   *slog.Logger
}

func NewConsistencyReactor(products ports.ProductRepository, logger *slog.Logger) *ConsistencyReactor {
	return &ConsistencyReactor{
		products: products,
		logger:   logger,
	}
}

func (r *ConsistencyReactor) Handle(ctx context.Context, event domain.LifecycleEvent) error {
	switch event.Type {
	case domain.EventUserDeleted:
		return r.userDeleted(ctx, event)
	default:
		r.logger.Debug("no reaction for event", "event_type", event.Type, "event_id", event.ID)
		return nil
	}
}

// userDeleted removes every product owned by the subject. Finding nothing
// to delete is success: the event may be a redelivery.
func (r *ConsistencyReactor) userDeleted(ctx context.Context, event domain.LifecycleEvent) error {
	ownerID, err := subjectOf(event)
	if err != nil {
		return err
	}

	removed, err := r.products.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("%w: delete products of %s: %w", domain.ErrHandlerFailed, ownerID, err)
	}

	r.logger.Info("removed products of deleted user",
		"user_id", ownerID,
		"event_id", event.ID,
		"removed", removed,
	)
	return nil
}

func subjectOf(event domain.LifecycleEvent) (uuid.UUID, error) {
	subject := event.SubjectID
	if subject == "" && len(event.Payload) > 0 {
		var payload domain.UserDeletedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		subject = payload.ID
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject %q is not a user id", domain.ErrMalformedEvent, subject)
	}
	return id, nil
}

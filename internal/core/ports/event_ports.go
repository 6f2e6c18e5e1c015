package ports

import (
	"context"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// EventHandler must be idempotent: deliveries are at-least-once.
type EventHandler func(ctx context.Context, event domain.LifecycleEvent) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, routingKey string, handler EventHandler) error
}

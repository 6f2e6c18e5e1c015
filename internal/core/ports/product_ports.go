package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
)

type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// ListActive returns every active product when ownerID is nil.
	ListActive(ctx context.Context, ownerID *uuid.UUID) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type CreateProductInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0,lte=9999999999.99"`
	IsActive    *bool   `json:"isActive"`
}

type UpdateProductInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=9999999999.99"`
	IsActive    *bool    `json:"isActive"`
}

type ProductService interface {
	Create(ctx context.Context, caller domain.Claims, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, caller domain.Claims) ([]*domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, caller domain.Claims, id uuid.UUID, input UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, caller domain.Claims, id uuid.UUID) error
}

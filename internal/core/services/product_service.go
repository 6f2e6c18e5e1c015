package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/usersync/internal/core/authz"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

var canModifyProduct = authz.IsOwner()

type ProductService struct {
	repo ports.ProductRepository
	now  func() time.Time
}

func NewProductService(repo ports.ProductRepository) ports.ProductService {
	return &ProductService{
		repo: repo,
		now:  time.Now,
	}
}

func (s *ProductService) Create(ctx context.Context, caller domain.Claims, input ports.CreateProductInput) (*domain.Product, error) {
	if err := authz.Authorize(authz.All(), caller, authz.Resource{}); err != nil {
		return nil, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		UserID:      caller.ID,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return product, nil
}

// List returns every active product to admins and only the caller's own
// active products to everyone else.
func (s *ProductService) List(ctx context.Context, caller domain.Claims) ([]*domain.Product, error) {
	var owner *uuid.UUID
	if !authz.HasRole(domain.RoleAdmin)(caller, authz.Resource{}) {
		owner = &caller.ID
	}

	products, err := s.repo.ListActive(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, caller domain.Claims, id uuid.UUID, input ports.UpdateProductInput) (*domain.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(canModifyProduct, caller, authz.Owned(product.UserID)); err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	product.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, caller domain.Claims, id uuid.UUID) error {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Authorize(canModifyProduct, caller, authz.Owned(product.UserID)); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

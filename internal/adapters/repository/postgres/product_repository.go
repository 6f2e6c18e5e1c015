package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

const productColumns = `id, name, description, price, user_id, is_active, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ports.ProductRepository {
	return &productRepository{
		db: db,
	}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.UserID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save inserts p and reads back the stored price and timestamps, which the
// column types round to cents and microseconds.
func (r *productRepository) Save(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, user_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING price, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.UserID, p.IsActive, p.CreatedAt, p.UpdatedAt).
		Scan(&p.Price, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *productRepository) ListActive(ctx context.Context, ownerID *uuid.UUID) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active AND ($1::uuid IS NULL OR user_id = $1)
		ORDER BY created_at DESC, id
	`
	var owner any
	if ownerID != nil {
		owner = *ownerID
	}

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, is_active = $5, updated_at = $6
		WHERE id = $1
		RETURNING price, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.IsActive, p.UpdatedAt).
		Scan(&p.Price, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// DeleteByOwner is safe to repeat: a second call removes nothing and
// reports zero rows.
func (r *productRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products of %s: %w", ownerID, err)
	}
	return res.RowsAffected()
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freemarket/basket-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, is_discounted, discounted_price, stock_quantity, created_at
		FROM products ORDER BY created_at, id`

	getProductByIDSQL = `SELECT id, name, description, price, is_discounted, discounted_price, stock_quantity, created_at
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, description, price, is_discounted, discounted_price, stock_quantity, created_at
		FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, is_discounted, discounted_price, stock_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			is_discounted = EXCLUDED.is_discounted,
			discounted_price = EXCLUDED.discounted_price,
			stock_quantity = EXCLUDED.stock_quantity`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the whole catalog in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or updates a catalog entry. Used by the seeding tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price,
		p.IsDiscounted, p.DiscountedPrice, p.StockQuantity, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price,
		&p.IsDiscounted, &p.DiscountedPrice, &p.StockQuantity, &p.CreatedAt,
	)
	return p, err
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freemarket/basket-api/internal/domain/discount"
)

const (
	// Code matching is deliberately case-sensitive: the column is compared
	// as-is, with no normalization on either side.
	findDiscountByCodeSQL = `SELECT id, code, percentage, active, valid_to, created_at
		FROM discounts WHERE code = $1`

	upsertDiscountSQL = `INSERT INTO discounts (id, code, percentage, active, valid_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			percentage = EXCLUDED.percentage,
			active = EXCLUDED.active,
			valid_to = EXCLUDED.valid_to`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its exact code. Returns
// discount.ErrNotFound when no such code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

// Upsert inserts or updates a discount by code. Used by the seeding and
// ingest tools.
func (r *DiscountRepository) Upsert(ctx context.Context, d *discount.Discount) error {
	var validTo *time.Time
	if !d.ValidTo.IsZero() {
		validTo = &d.ValidTo
	}

	_, err := r.pool.Exec(ctx, upsertDiscountSQL,
		d.ID, d.Code, d.Percentage, d.Active, validTo, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting discount %q: %w", d.Code, err)
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d       discount.Discount
		validTo *time.Time
	)
	err := row.Scan(&d.ID, &d.Code, &d.Percentage, &d.Active, &validTo, &d.CreatedAt)
	if validTo != nil {
		d.ValidTo = *validTo
	}
	return d, err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freemarket/basket-api/internal/domain/basket"
	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
	"github.com/freemarket/basket-api/internal/domain/shipping"
)

const (
	insertBasketSQL = `INSERT INTO baskets (id, customer_email, shipping_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	getBasketSQL = `SELECT id, customer_email, applied_discount_id, shipping_address_id, shipping_cost, created_at, updated_at
		FROM baskets WHERE id = $1`

	getBasketItemsSQL = `SELECT i.id, i.basket_id, i.product_id, i.quantity, i.unit_price, i.added_at,
			p.id, p.name, p.description, p.price, p.is_discounted, p.discounted_price, p.stock_quantity, p.created_at
		FROM basket_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.basket_id = $1
		ORDER BY i.added_at, i.id`

	getDiscountByIDSQL = `SELECT id, code, percentage, active, valid_to, created_at
		FROM discounts WHERE id = $1`

	getAddressByIDSQL = `SELECT id, country, customer_email FROM addresses WHERE id = $1`

	insertAddressSQL = `INSERT INTO addresses (id, country, customer_email)
		VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`

	updateBasketSQL = `UPDATE baskets
		SET customer_email = $2, applied_discount_id = $3, shipping_address_id = $4, shipping_cost = $5, updated_at = $6
		WHERE id = $1`

	upsertBasketItemSQL = `INSERT INTO basket_items (id, basket_id, product_id, quantity, unit_price, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET quantity = EXCLUDED.quantity`

	deleteStaleItemsSQL = `DELETE FROM basket_items WHERE basket_id = $1 AND NOT (id = ANY($2))`

	deleteAllItemsSQL = `DELETE FROM basket_items WHERE basket_id = $1`
)

var _ basket.Repository = (*BasketRepository)(nil)

// BasketRepository implements basket.Repository backed by PostgreSQL.
// Save commits the whole aggregate in one transaction so a failed write
// never leaves a basket with half its item changes applied.
type BasketRepository struct {
	pool *pgxpool.Pool
}

// NewBasketRepository returns a BasketRepository that uses the given pool.
func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

// Create persists a newly created, empty basket.
func (r *BasketRepository) Create(ctx context.Context, b *basket.Basket) error {
	_, err := r.pool.Exec(ctx, insertBasketSQL,
		b.ID, b.CustomerEmail, b.ShippingCost, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating basket %s: %w", b.ID, err)
	}
	return nil
}

// Get loads a basket with its items (and their products), applied discount,
// and shipping address fully populated. Returns basket.ErrNotFound when the
// basket does not exist.
func (r *BasketRepository) Get(ctx context.Context, id uuid.UUID) (*basket.Basket, error) {
	var (
		b          basket.Basket
		discountID *uuid.UUID
		addressID  *uuid.UUID
	)
	err := r.pool.QueryRow(ctx, getBasketSQL, id).Scan(
		&b.ID, &b.CustomerEmail, &discountID, &addressID,
		&b.ShippingCost, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, basket.ErrNotFound
		}
		return nil, fmt.Errorf("getting basket %s: %w", id, err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Items = items

	if discountID != nil {
		d, err := r.loadDiscount(ctx, *discountID)
		if err != nil {
			return nil, err
		}
		b.AppliedDiscount = d
	}

	if addressID != nil {
		addr, err := r.loadAddress(ctx, *addressID)
		if err != nil {
			return nil, err
		}
		b.ShippingAddress = addr
	}

	return &b, nil
}

// Save writes the whole aggregate back: basket row, shipping address, and
// the item collection (upserting survivors, deleting removed lines).
func (r *BasketRepository) Save(ctx context.Context, b *basket.Basket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var addressID *uuid.UUID
	if b.ShippingAddress != nil {
		if _, err := tx.Exec(ctx, insertAddressSQL,
			b.ShippingAddress.ID, b.ShippingAddress.Country, b.ShippingAddress.CustomerEmail,
		); err != nil {
			return fmt.Errorf("inserting address %s: %w", b.ShippingAddress.ID, err)
		}
		addressID = &b.ShippingAddress.ID
	}

	var discountID *uuid.UUID
	if b.AppliedDiscount != nil {
		discountID = &b.AppliedDiscount.ID
	}

	if _, err := tx.Exec(ctx, updateBasketSQL,
		b.ID, b.CustomerEmail, discountID, addressID, b.ShippingCost, b.UpdatedAt,
	); err != nil {
		return fmt.Errorf("updating basket %s: %w", b.ID, err)
	}

	if len(b.Items) == 0 {
		if _, err := tx.Exec(ctx, deleteAllItemsSQL, b.ID); err != nil {
			return fmt.Errorf("deleting items of basket %s: %w", b.ID, err)
		}
	} else {
		keep := make([]uuid.UUID, 0, len(b.Items))
		for _, item := range b.Items {
			if _, err := tx.Exec(ctx, upsertBasketItemSQL,
				item.ID, b.ID, item.ProductID, item.Quantity, item.UnitPrice, item.AddedAt,
			); err != nil {
				return fmt.Errorf("upserting basket item %s: %w", item.ID, err)
			}
			keep = append(keep, item.ID)
		}
		if _, err := tx.Exec(ctx, deleteStaleItemsSQL, b.ID, keep); err != nil {
			return fmt.Errorf("deleting stale items of basket %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing basket %s: %w", b.ID, err)
	}
	return nil
}

func (r *BasketRepository) loadItems(ctx context.Context, basketID uuid.UUID) ([]*basket.Item, error) {
	rows, err := r.pool.Query(ctx, getBasketItemsSQL, basketID)
	if err != nil {
		return nil, fmt.Errorf("getting items of basket %s: %w", basketID, err)
	}

	items, err := pgx.CollectRows(rows, scanBasketItem)
	if err != nil {
		return nil, fmt.Errorf("scanning items of basket %s: %w", basketID, err)
	}
	return items, nil
}

func (r *BasketRepository) loadDiscount(ctx context.Context, id uuid.UUID) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting discount %s: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		return nil, fmt.Errorf("getting discount %s: %w", id, err)
	}
	return &d, nil
}

func (r *BasketRepository) loadAddress(ctx context.Context, id uuid.UUID) (*shipping.Address, error) {
	var addr shipping.Address
	err := r.pool.QueryRow(ctx, getAddressByIDSQL, id).Scan(
		&addr.ID, &addr.Country, &addr.CustomerEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("getting address %s: %w", id, err)
	}
	return &addr, nil
}

func scanBasketItem(row pgx.CollectableRow) (*basket.Item, error) {
	var (
		item basket.Item
		p    product.Product
	)
	err := row.Scan(
		&item.ID, &item.BasketID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.AddedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.IsDiscounted, &p.DiscountedPrice, &p.StockQuantity, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Product = &p
	return &item, nil
}

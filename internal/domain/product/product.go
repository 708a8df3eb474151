package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. The basket never
// mutates products; the catalog owns them.
type Product struct {
	ID              uuid.UUID
	Name            string
	Description     string
	Price           decimal.Decimal
	IsDiscounted    bool
	DiscountedPrice decimal.Decimal
	StockQuantity   int
	CreatedAt       time.Time
}

// EffectivePrice resolves the unit price a basket line pays for this product.
// A discounted product sells at its discounted price only when that price is
// set to a positive value; otherwise the catalog price applies.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.IsDiscounted && p.DiscountedPrice.IsPositive() {
		return p.DiscountedPrice
	}
	return p.Price
}

// InStock reports whether the current stock level covers the requested
// quantity. This is a point-in-time check; nothing is reserved.
func (p *Product) InStock(quantity int) bool {
	return p.StockQuantity >= quantity
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
}

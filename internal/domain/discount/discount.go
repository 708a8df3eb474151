package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no discount exists for a given code.
	// Code matching is case-sensitive and exact; no normalization is applied.
	ErrNotFound = errors.New("discount code not found")
	// ErrInvalid is returned when a discount is applied while inactive or
	// past its expiry.
	ErrInvalid = errors.New("discount is not valid")
)

// Discount is a promotional code granting a percentage off the eligible part
// of a basket. Discounts are owned by the promotion catalog; a basket only
// holds a reference to the one currently applied.
type Discount struct {
	ID         uuid.UUID
	Code       string
	Percentage decimal.Decimal
	Active     bool
	// ValidTo is the expiry instant. The zero value means "no expiry".
	ValidTo   time.Time
	CreatedAt time.Time
}

// IsValid reports whether the discount can be applied at the given instant.
// Expiry is strict: a ValidTo exactly equal to now is already expired.
func (d *Discount) IsValid(now time.Time) bool {
	return d.Active && (d.ValidTo.IsZero() || d.ValidTo.After(now))
}

// Repository provides lookup of discounts in the promotion catalog.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
}

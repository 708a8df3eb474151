package basket

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
	"github.com/freemarket/basket-api/internal/domain/shipping"
)

// AddLine is one requested (product, quantity) pair for AddItems.
type AddLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service orchestrates basket aggregates against the product catalog, the
// discount catalog, and basket persistence. It owns the clock: every
// mutation stamps the aggregate with s.now() so tests can freeze time.
type Service struct {
	baskets   Repository
	products  product.Repository
	discounts discount.Repository
	now       func() time.Time
}

// NewService creates a basket Service with the required collaborators.
func NewService(baskets Repository, products product.Repository, discounts discount.Repository) *Service {
	return &Service{
		baskets:   baskets,
		products:  products,
		discounts: discounts,
		now:       time.Now,
	}
}

// CreateBasket starts an empty basket for the customer.
func (s *Service) CreateBasket(ctx context.Context, customerEmail string) (*Basket, error) {
	b := New(customerEmail, s.now())
	if err := s.baskets.Create(ctx, b); err != nil {
		return nil, errors.Wrap(err, "create basket")
	}
	return b, nil
}

// GetBasket loads a fully populated basket aggregate.
func (s *Service) GetBasket(ctx context.Context, id uuid.UUID) (*Basket, error) {
	return s.baskets.Get(ctx, id)
}

// AddItems adds every requested line to the basket. The call is atomic at
// the persistence boundary: if any line fails validation, product lookup, or
// the stock check, nothing is saved and the stored basket stays as it was.
func (s *Service) AddItems(ctx context.Context, basketID uuid.UUID, lines []AddLine) (*Basket, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids[i] = line.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[uuid.UUID]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	now := s.now()
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", line.ProductID)
		}
		if err := b.AddItem(p, line.Quantity, now); err != nil {
			return nil, err
		}
	}

	if err := s.baskets.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save basket")
	}
	return b, nil
}

// RemoveItem removes an item from the basket. An unknown item id is not an
// error; removal is idempotent.
func (s *Service) RemoveItem(ctx context.Context, basketID, itemID uuid.UUID) (*Basket, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return nil, err
	}

	if !b.RemoveItem(itemID, s.now()) {
		// Nothing changed; skip the write.
		return b, nil
	}

	if err := s.baskets.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save basket")
	}
	return b, nil
}

// UpdateItemQuantity sets an item's quantity, removing the item when the
// quantity is zero or negative.
func (s *Service) UpdateItemQuantity(ctx context.Context, basketID, itemID uuid.UUID, quantity int) (*Basket, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return nil, err
	}

	if err := b.UpdateItemQuantity(itemID, quantity, s.now()); err != nil {
		return nil, err
	}

	if err := s.baskets.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save basket")
	}
	return b, nil
}

// ApplyDiscountCode looks up the code in the discount catalog and applies it
// to the basket, replacing any previously applied discount.
func (s *Service) ApplyDiscountCode(ctx context.Context, basketID uuid.UUID, code string) (*Basket, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return nil, err
	}

	d, err := s.discounts.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := b.ApplyDiscount(d, s.now()); err != nil {
		return nil, err
	}

	if err := s.baskets.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save basket")
	}
	return b, nil
}

// SetShippingAddress builds a destination address for the basket's customer,
// prices it through the shipping resolver, and stores both on the basket.
func (s *Service) SetShippingAddress(ctx context.Context, basketID uuid.UUID, country string) (*Basket, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return nil, err
	}

	addr := &shipping.Address{
		ID:            uuid.New(),
		Country:       country,
		CustomerEmail: b.CustomerEmail,
	}
	cost, err := shipping.CalculateCost(addr)
	if err != nil {
		return nil, err
	}

	b.SetShippingAddress(addr, cost, s.now())

	if err := s.baskets.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save basket")
	}
	return b, nil
}

// TotalCost returns the basket total with 20% VAT included, or without VAT
// when includeVAT is false.
func (s *Service) TotalCost(ctx context.Context, basketID uuid.UUID, includeVAT bool) (decimal.Decimal, error) {
	b, err := s.baskets.Get(ctx, basketID)
	if err != nil {
		return decimal.Zero, err
	}

	if includeVAT {
		return b.Total(DefaultVATRate)
	}
	return b.TotalWithoutVat()
}

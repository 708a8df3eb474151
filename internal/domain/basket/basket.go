package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
	"github.com/freemarket/basket-api/internal/domain/shipping"
)

// DefaultVATRate is the flat VAT percentage applied when the caller does not
// supply one.
var DefaultVATRate = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// Sentinel errors for basket operations.
var (
	ErrNotFound        = errors.New("basket not found")
	ErrItemNotFound    = errors.New("basket item not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrProductMissing indicates a basket item without a resolved product.
	// Items always reference a real product, so hitting this is a data
	// integrity fault, not a user error.
	ErrProductMissing = errors.New("basket item has no resolved product")
)

// InsufficientStockError indicates a requested quantity exceeds the product's
// current stock level.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// Item is a single product line within a basket. The item is owned by its
// basket and dies with it. UnitPrice is the catalog price captured at add
// time, kept for display; line totals always reprice from the live product.
type Item struct {
	ID        uuid.UUID
	BasketID  uuid.UUID
	ProductID uuid.UUID
	Product   *product.Product
	Quantity  int
	UnitPrice decimal.Decimal
	AddedAt   time.Time
}

// LineTotal returns the item's effective unit price multiplied by its
// quantity. The product reference must be resolved.
func (i *Item) LineTotal() (decimal.Decimal, error) {
	if i.Product == nil {
		return decimal.Zero, ErrProductMissing
	}
	qty := decimal.NewFromInt(int64(i.Quantity))
	return i.Product.EffectivePrice().Mul(qty), nil
}

// SetQuantity replaces the item's quantity. Zero and negative values are
// rejected; removing an item is the aggregate's job.
func (i *Item) SetQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.Quantity = quantity
	return nil
}

// Basket is the aggregate root for a customer's in-progress order. All
// mutations take an explicit timestamp so callers (and tests) control the
// clock; every successful mutation refreshes UpdatedAt.
type Basket struct {
	ID              uuid.UUID
	CustomerEmail   string
	Items           []*Item
	AppliedDiscount *discount.Discount
	ShippingAddress *shipping.Address
	ShippingCost    decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New creates an empty basket for the given customer.
func New(customerEmail string, now time.Time) *Basket {
	return &Basket{
		ID:            uuid.New(),
		CustomerEmail: customerEmail,
		ShippingCost:  decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// findItem returns the item with the given id, or nil.
func (b *Basket) findItem(itemID uuid.UUID) *Item {
	for _, it := range b.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

// findItemByProduct returns the item holding the given product, or nil.
func (b *Basket) findItemByProduct(productID uuid.UUID) *Item {
	for _, it := range b.Items {
		if it.ProductID == productID {
			return it
		}
	}
	return nil
}

// AddItem puts quantity units of the product into the basket. A product
// already present has its quantity increased rather than gaining a second
// line. Stock is checked against the requested quantity but never reserved.
func (b *Basket) AddItem(p *product.Product, quantity int, now time.Time) error {
	if p == nil {
		return ErrProductMissing
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.InStock(quantity) {
		return &InsufficientStockError{
			ProductName: p.Name,
			Available:   p.StockQuantity,
			Requested:   quantity,
		}
	}

	if existing := b.findItemByProduct(p.ID); existing != nil {
		if err := existing.SetQuantity(existing.Quantity + quantity); err != nil {
			return err
		}
	} else {
		b.Items = append(b.Items, &Item{
			ID:        uuid.New(),
			BasketID:  b.ID,
			ProductID: p.ID,
			Product:   p,
			Quantity:  quantity,
			UnitPrice: p.Price,
			AddedAt:   now,
		})
	}

	b.UpdatedAt = now
	return nil
}

// RemoveItem deletes the item with the given id. Removing an unknown id is a
// no-op: the basket is untouched and UpdatedAt keeps its old value. It
// reports whether an item was actually removed.
func (b *Basket) RemoveItem(itemID uuid.UUID, now time.Time) bool {
	for idx, it := range b.Items {
		if it.ID == itemID {
			b.Items = append(b.Items[:idx], b.Items[idx+1:]...)
			b.UpdatedAt = now
			return true
		}
	}
	return false
}

// UpdateItemQuantity sets the item's quantity to the given value. A quantity
// of zero or less removes the item entirely. Unknown item ids fail with
// ErrItemNotFound.
func (b *Basket) UpdateItemQuantity(itemID uuid.UUID, quantity int, now time.Time) error {
	item := b.findItem(itemID)
	if item == nil {
		return ErrItemNotFound
	}

	if quantity <= 0 {
		b.RemoveItem(itemID, now)
		return nil
	}

	if err := item.SetQuantity(quantity); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

// ApplyDiscount attaches the discount to the basket, replacing any previously
// applied one. Inactive or expired discounts are rejected and the basket is
// left as it was.
func (b *Basket) ApplyDiscount(d *discount.Discount, now time.Time) error {
	if d == nil || !d.IsValid(now) {
		return discount.ErrInvalid
	}
	b.AppliedDiscount = d
	b.UpdatedAt = now
	return nil
}

// SetShippingAddress replaces the basket's shipping destination and cost.
// The cost is supplied by the caller (priced via the shipping resolver); the
// aggregate does not recompute it.
func (b *Basket) SetShippingAddress(addr *shipping.Address, cost decimal.Decimal, now time.Time) {
	b.ShippingAddress = addr
	b.ShippingCost = cost
	b.UpdatedAt = now
}

// Subtotal is the sum of all line totals before discount and shipping.
func (b *Basket) Subtotal() (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range b.Items {
		line, err := it.LineTotal()
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(line)
	}
	return sum, nil
}

// EligibleAmount is the portion of the subtotal drawn from products that are
// not already on a catalog discount. Promotional discounts never stack on
// top of catalog discounts.
func (b *Basket) EligibleAmount() (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range b.Items {
		if it.Product == nil {
			return decimal.Zero, ErrProductMissing
		}
		if it.Product.IsDiscounted {
			continue
		}
		line, err := it.LineTotal()
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(line)
	}
	return sum, nil
}

// DiscountAmount is the monetary value of the applied discount, computed
// over the eligible amount. Zero when no discount is applied.
func (b *Basket) DiscountAmount() (decimal.Decimal, error) {
	if b.AppliedDiscount == nil {
		return decimal.Zero, nil
	}
	eligible, err := b.EligibleAmount()
	if err != nil {
		return decimal.Zero, err
	}
	return eligible.Mul(b.AppliedDiscount.Percentage.Div(hundred)), nil
}

// SubtotalAfterDiscount is Subtotal minus DiscountAmount.
func (b *Basket) SubtotalAfterDiscount() (decimal.Decimal, error) {
	subtotal, err := b.Subtotal()
	if err != nil {
		return decimal.Zero, err
	}
	discountAmount, err := b.DiscountAmount()
	if err != nil {
		return decimal.Zero, err
	}
	return subtotal.Sub(discountAmount), nil
}

// VatAmount is the VAT due on the discounted subtotal plus shipping. No
// rounding is applied; the full decimal precision carries through.
func (b *Basket) VatAmount(vatRate decimal.Decimal) (decimal.Decimal, error) {
	afterDiscount, err := b.SubtotalAfterDiscount()
	if err != nil {
		return decimal.Zero, err
	}
	return afterDiscount.Add(b.ShippingCost).Mul(vatRate.Div(hundred)), nil
}

// Total is the grand total including shipping and VAT at the given rate.
func (b *Basket) Total(vatRate decimal.Decimal) (decimal.Decimal, error) {
	withoutVAT, err := b.TotalWithoutVat()
	if err != nil {
		return decimal.Zero, err
	}
	vat, err := b.VatAmount(vatRate)
	if err != nil {
		return decimal.Zero, err
	}
	return withoutVAT.Add(vat), nil
}

// TotalWithoutVat is the discounted subtotal plus shipping.
func (b *Basket) TotalWithoutVat() (decimal.Decimal, error) {
	afterDiscount, err := b.SubtotalAfterDiscount()
	if err != nil {
		return decimal.Zero, err
	}
	return afterDiscount.Add(b.ShippingCost), nil
}

// Repository defines persistence operations for basket aggregates. Get
// returns the basket fully populated: items with their products, the applied
// discount, and the shipping address. Save commits the whole aggregate in a
// single transaction, cascading item inserts, updates, and deletes.
type Repository interface {
	Create(ctx context.Context, b *Basket) error
	Get(ctx context.Context, id uuid.UUID) (*Basket, error)
	Save(ctx context.Context, b *Basket) error
}

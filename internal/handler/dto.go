package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/basket"
)

// BasketResponse is the output projection of a basket aggregate. Monetary
// values are serialized as exact decimal strings; no rounding is applied.
type BasketResponse struct {
	ID                    uuid.UUID            `json:"id"`
	CustomerEmail         string               `json:"customerEmail"`
	Items                 []BasketItemResponse `json:"items"`
	AppliedDiscount       *DiscountResponse    `json:"appliedDiscount,omitempty"`
	ShippingAddress       *AddressResponse     `json:"shippingAddress,omitempty"`
	ShippingCost          decimal.Decimal      `json:"shippingCost"`
	Subtotal              decimal.Decimal      `json:"subtotal"`
	DiscountAmount        decimal.Decimal      `json:"discountAmount"`
	SubtotalAfterDiscount decimal.Decimal      `json:"subtotalAfterDiscount"`
	VatAmount             decimal.Decimal      `json:"vatAmount"`
	Total                 decimal.Decimal      `json:"total"`
	TotalWithoutVat       decimal.Decimal      `json:"totalWithoutVat"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// BasketItemResponse is one basket line in the output projection.
type BasketItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"productId"`
	ProductName        string          `json:"productName"`
	ProductDescription string          `json:"productDescription"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
	AddedAt            time.Time       `json:"addedAt"`
}

// DiscountResponse describes the discount applied to a basket.
type DiscountResponse struct {
	ID    uuid.UUID       `json:"id"`
	Code  string          `json:"code"`
	Value decimal.Decimal `json:"value"`
}

// AddressResponse exposes only the destination country of a shipping address.
type AddressResponse struct {
	Country string `json:"country"`
}

// NewBasketResponse projects an aggregate into its response DTO, computing
// all derived totals at the default VAT rate.
func NewBasketResponse(b *basket.Basket) (*BasketResponse, error) {
	items := make([]BasketItemResponse, len(b.Items))
	for i, item := range b.Items {
		line, err := item.LineTotal()
		if err != nil {
			return nil, err
		}
		items[i] = BasketItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: line,
			AddedAt:   item.AddedAt,
		}
		if item.Product != nil {
			items[i].ProductName = item.Product.Name
			items[i].ProductDescription = item.Product.Description
		}
	}

	subtotal, err := b.Subtotal()
	if err != nil {
		return nil, err
	}
	discountAmount, err := b.DiscountAmount()
	if err != nil {
		return nil, err
	}
	afterDiscount, err := b.SubtotalAfterDiscount()
	if err != nil {
		return nil, err
	}
	vat, err := b.VatAmount(basket.DefaultVATRate)
	if err != nil {
		return nil, err
	}
	total, err := b.Total(basket.DefaultVATRate)
	if err != nil {
		return nil, err
	}
	withoutVAT, err := b.TotalWithoutVat()
	if err != nil {
		return nil, err
	}

	resp := &BasketResponse{
		ID:                    b.ID,
		CustomerEmail:         b.CustomerEmail,
		Items:                 items,
		ShippingCost:          b.ShippingCost,
		Subtotal:              subtotal,
		DiscountAmount:        discountAmount,
		SubtotalAfterDiscount: afterDiscount,
		VatAmount:             vat,
		Total:                 total,
		TotalWithoutVat:       withoutVAT,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}

	if b.AppliedDiscount != nil {
		resp.AppliedDiscount = &DiscountResponse{
			ID:    b.AppliedDiscount.ID,
			Code:  b.AppliedDiscount.Code,
			Value: b.AppliedDiscount.Percentage,
		}
	}
	if b.ShippingAddress != nil {
		resp.ShippingAddress = &AddressResponse{Country: b.ShippingAddress.Country}
	}

	return resp, nil
}

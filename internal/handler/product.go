package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/product"
)

// ProductResponse is one catalog entry in the listing.
type ProductResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	IsDiscounted    bool            `json:"isDiscounted"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	EffectivePrice  decimal.Decimal `json:"effectivePrice"`
	StockQuantity   int             `json:"stockQuantity"`
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]ProductResponse, len(products))
	for i := range products {
		resp[i] = newProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func newProductResponse(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		IsDiscounted:    p.IsDiscounted,
		DiscountedPrice: p.DiscountedPrice,
		EffectivePrice:  p.EffectivePrice(),
		StockQuantity:   p.StockQuantity,
	}
}

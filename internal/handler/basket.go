package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/basket"
	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
)

type createBasketRequest struct {
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
}

type addItemLine struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type addItemsRequest struct {
	Items []addItemLine `json:"items" validate:"required,min=1,dive"`
}

type applyDiscountRequest struct {
	DiscountCode string `json:"discountCode" validate:"required"`
}

type setShippingRequest struct {
	ShippingAddress struct {
		Country string `json:"country" validate:"required"`
	} `json:"shippingAddress" validate:"required"`
}

type totalResponse struct {
	Total decimal.Decimal `json:"total"`
}

// CreateBasket handles POST /baskets.
func (h *Handler) CreateBasket(w http.ResponseWriter, r *http.Request) {
	var req createBasketRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.service.CreateBasket(r.Context(), req.CustomerEmail)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusCreated, b)
}

// GetBasket handles GET /baskets/{basketID}.
func (h *Handler) GetBasket(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}

	b, err := h.service.GetBasket(r.Context(), basketID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// AddItems handles POST /baskets/{basketID}/items.
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}

	var req addItemsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines := make([]basket.AddLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = basket.AddLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	b, err := h.service.AddItems(r.Context(), basketID, lines)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// AddSingleItem handles POST /baskets/{basketID}/items/{productID}, adding
// one unit of the product.
func (h *Handler) AddSingleItem(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return
	}

	b, err := h.service.AddItems(r.Context(), basketID, []basket.AddLine{
		{ProductID: productID, Quantity: 1},
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// RemoveItem handles DELETE /baskets/{basketID}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}

	b, err := h.service.RemoveItem(r.Context(), basketID, itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// UpdateItemQuantity handles PUT /baskets/{basketID}/items/{itemID}/quantity/{quantity}.
func (h *Handler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(chi.URLParam(r, "quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	b, err := h.service.UpdateItemQuantity(r.Context(), basketID, itemID, quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// ApplyDiscount handles POST /baskets/{basketID}/apply-discount.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}

	var req applyDiscountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.service.ApplyDiscountCode(r.Context(), basketID, req.DiscountCode)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// SetShippingAddress handles POST /baskets/{basketID}/shipping.
func (h *Handler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}

	var req setShippingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.service.SetShippingAddress(r.Context(), basketID, req.ShippingAddress.Country)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeBasket(w, http.StatusOK, b)
}

// GetTotal handles GET /baskets/{basketID}/total (20% VAT included).
func (h *Handler) GetTotal(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, true)
}

// GetTotalWithoutVat handles GET /baskets/{basketID}/total/excluding-vat.
func (h *Handler) GetTotalWithoutVat(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, false)
}

func (h *Handler) total(w http.ResponseWriter, r *http.Request, includeVAT bool) {
	basketID, ok := h.pathID(w, r, "basketID")
	if !ok {
		return
	}

	total, err := h.service.TotalCost(r.Context(), basketID, includeVAT)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, totalResponse{Total: total})
}

// pathID parses a UUID path parameter, writing a 400 response on failure.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// writeBasket projects the aggregate and writes it as JSON.
func (h *Handler) writeBasket(w http.ResponseWriter, status int, b *basket.Basket) {
	resp, err := NewBasketResponse(b)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain failures to status codes: lookup misses are
// 404, integrity faults are 500, everything else the domain rejects is 400.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, basket.ErrNotFound),
		errors.Is(err, basket.ErrItemNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, discount.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, basket.ErrProductMissing):
		// A basket item without a real product is a data fault, not bad input.
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, basket.ErrInvalidQuantity),
		errors.Is(err, discount.ErrInvalid),
		isBusinessError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isBusinessError(err error) bool {
	var stockErr *basket.InsufficientStockError
	return errors.As(err, &stockErr)
}

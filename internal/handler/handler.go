// Package handler exposes basket operations over HTTP. It is thin plumbing:
// requests are decoded and validated, delegated to the basket service, and
// the resulting aggregate is projected to a response DTO.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/freemarket/basket-api/internal/domain/basket"
	"github.com/freemarket/basket-api/internal/domain/product"
)

// Handler implements the basket HTTP API.
type Handler struct {
	service  *basket.Service
	products product.Repository
	validate *validator.Validate
}

// NewHandler constructs a Handler around the basket service and the product
// catalog.
func NewHandler(service *basket.Service, products product.Repository) *Handler {
	return &Handler{
		service:  service,
		products: products,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the chi router for all basket and catalog endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.ListProducts)
	r.Route("/baskets", func(r chi.Router) {
		r.Post("/", h.CreateBasket)
		r.Route("/{basketID}", func(r chi.Router) {
			r.Get("/", h.GetBasket)
			r.Post("/items", h.AddItems)
			r.Post("/items/{productID}", h.AddSingleItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
			r.Put("/items/{itemID}/quantity/{quantity}", h.UpdateItemQuantity)
			r.Post("/apply-discount", h.ApplyDiscount)
			r.Post("/shipping", h.SetShippingAddress)
			r.Get("/total", h.GetTotal)
			r.Get("/total/excluding-vat", h.GetTotalWithoutVat)
		})
	})
	return r
}

// decode unmarshals the request body into v and runs struct validation.
func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return h.validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

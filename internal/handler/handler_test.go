package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freemarket/basket-api/internal/domain/basket"
	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
)

type memBasketRepo struct {
	baskets map[uuid.UUID]*basket.Basket
}

func newMemBasketRepo() *memBasketRepo {
	return &memBasketRepo{baskets: make(map[uuid.UUID]*basket.Basket)}
}

func (r *memBasketRepo) Create(_ context.Context, b *basket.Basket) error {
	r.baskets[b.ID] = b
	return nil
}

func (r *memBasketRepo) Get(_ context.Context, id uuid.UUID) (*basket.Basket, error) {
	b, ok := r.baskets[id]
	if !ok {
		return nil, basket.ErrNotFound
	}
	return b, nil
}

func (r *memBasketRepo) Save(_ context.Context, b *basket.Basket) error {
	r.baskets[b.ID] = b
	return nil
}

type memProductRepo struct {
	products map[uuid.UUID]product.Product
}

func (r *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *memProductRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]product.Product, error) {
	var out []product.Product
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memDiscountRepo struct {
	discounts map[string]discount.Discount
}

func (r *memDiscountRepo) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	d, ok := r.discounts[code]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return &d, nil
}

type fixture struct {
	server    *httptest.Server
	baskets   *memBasketRepo
	laptop    product.Product
	mouse     product.Product
	noStock   product.Product
	validCode string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	laptop := product.Product{
		ID:            uuid.New(),
		Name:          "Laptop",
		Description:   "15 inch laptop",
		Price:         decimal.RequireFromString("1200.00"),
		StockQuantity: 10,
	}
	mouse := product.Product{
		ID:              uuid.New(),
		Name:            "Wireless Mouse",
		Price:           decimal.RequireFromString("40.00"),
		IsDiscounted:    true,
		DiscountedPrice: decimal.RequireFromString("25.00"),
		StockQuantity:   100,
	}
	noStock := product.Product{
		ID:            uuid.New(),
		Name:          "USB Hub",
		Price:         decimal.RequireFromString("15.00"),
		StockQuantity: 0,
	}

	baskets := newMemBasketRepo()
	products := &memProductRepo{products: map[uuid.UUID]product.Product{
		laptop.ID:  laptop,
		mouse.ID:   mouse,
		noStock.ID: noStock,
	}}
	discounts := &memDiscountRepo{discounts: map[string]discount.Discount{
		"SAVE10": {
			ID:         uuid.New(),
			Code:       "SAVE10",
			Percentage: decimal.NewFromInt(10),
			Active:     true,
		},
		"EXPIRED20": {
			ID:         uuid.New(),
			Code:       "EXPIRED20",
			Percentage: decimal.NewFromInt(20),
			Active:     true,
			ValidTo:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}}

	svc := basket.NewService(baskets, products, discounts)
	srv := httptest.NewServer(NewHandler(svc, products).Routes())
	t.Cleanup(srv.Close)

	return &fixture{
		server:    srv,
		baskets:   baskets,
		laptop:    laptop,
		mouse:     mouse,
		noStock:   noStock,
		validCode: "SAVE10",
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func (f *fixture) createBasket(t *testing.T) uuid.UUID {
	t.Helper()

	resp, body := f.do(t, http.MethodPost, "/baskets", map[string]string{
		"customerEmail": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var id uuid.UUID
	require.NoError(t, json.Unmarshal(body["id"], &id))
	return id
}

func strField(t *testing.T, body map[string]json.RawMessage, key string) string {
	t.Helper()

	var s string
	require.NoError(t, json.Unmarshal(body[key], &s), "field %s", key)
	return s
}

// assertMoney compares a decimal JSON field by value, ignoring trailing zeros.
func assertMoney(t *testing.T, body map[string]json.RawMessage, key, want string) {
	t.Helper()

	var got decimal.Decimal
	require.NoError(t, json.Unmarshal(body[key], &got), "field %s", key)
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"field %s: got %s, want %s", key, got, want)
}

func TestCreateBasket(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/baskets", map[string]string{
		"customerEmail": "alice@example.com",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice@example.com", strField(t, body, "customerEmail"))
	assertMoney(t, body, "subtotal", "0")
	assertMoney(t, body, "total", "0")
}

func TestCreateBasketRejectsBadEmail(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/baskets", map[string]string{
		"customerEmail": "not-an-email",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBasketNotFound(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/baskets/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBasketInvalidID(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/baskets/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddItems(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{
			{"productId": f.laptop.ID, "quantity": 2},
			{"productId": f.mouse.ID, "quantity": 1},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	// 2 x 1200 plus one mouse at its catalog-discounted 25.
	assertMoney(t, body, "subtotal", "2425")

	var items []BasketItemResponse
	require.NoError(t, json.Unmarshal(body["items"], &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Laptop", items[0].ProductName)
	assert.True(t, items[1].UnitPrice.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, items[1].LineTotal.Equal(decimal.RequireFromString("25.00")))
}

func TestAddItemsUnknownProduct(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{
			{"productId": uuid.New(), "quantity": 1},
		},
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddItemsInsufficientStock(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{
			{"productId": f.noStock.ID, "quantity": 1},
		},
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, strField(t, body, "error"), "insufficient stock")
}

func TestAddItemsRejectsEmptyList(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddSingleItem(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items/%s", id, f.laptop.ID), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "subtotal", "1200")

	// A second call merges into the existing line.
	resp, body = f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items/%s", id, f.laptop.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []BasketItemResponse
	require.NoError(t, json.Unmarshal(body["items"], &items))
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	_, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items/%s", id, f.laptop.ID), nil)
	var items []BasketItemResponse
	require.NoError(t, json.Unmarshal(body["items"], &items))
	require.Len(t, items, 1)

	resp, body := f.do(t, http.MethodDelete, fmt.Sprintf("/baskets/%s/items/%s", id, items[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.Unmarshal(body["items"], &items))
	assert.Empty(t, items)
}

func TestRemoveItemUnknownIDIsNoOp(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodDelete, fmt.Sprintf("/baskets/%s/items/%s", id, uuid.New()), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateItemQuantity(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	_, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items/%s", id, f.laptop.ID), nil)
	var items []BasketItemResponse
	require.NoError(t, json.Unmarshal(body["items"], &items))
	itemID := items[0].ID

	resp, body := f.do(t, http.MethodPut, fmt.Sprintf("/baskets/%s/items/%s/quantity/5", id, itemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "subtotal", "6000")

	// Zero quantity removes the line.
	resp, body = f.do(t, http.MethodPut, fmt.Sprintf("/baskets/%s/items/%s/quantity/0", id, itemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body["items"], &items))
	assert.Empty(t, items)
}

func TestUpdateItemQuantityUnknownItem(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPut, fmt.Sprintf("/baskets/%s/items/%s/quantity/3", id, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateItemQuantityBadPathValue(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPut, fmt.Sprintf("/baskets/%s/items/%s/quantity/lots", id, uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplyDiscount(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	_, _ = f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{
			{"productId": f.laptop.ID, "quantity": 1},
			{"productId": f.mouse.ID, "quantity": 2},
		},
	})

	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/apply-discount", id), map[string]string{
		"discountCode": "SAVE10",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	// 10% off the laptop only; the mouse is already catalog-discounted.
	assertMoney(t, body, "discountAmount", "120")
	assertMoney(t, body, "subtotalAfterDiscount", "1130")

	var applied DiscountResponse
	require.NoError(t, json.Unmarshal(body["appliedDiscount"], &applied))
	assert.Equal(t, "SAVE10", applied.Code)
}

func TestApplyDiscountUnknownCode(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/apply-discount", id), map[string]string{
		"discountCode": "NOPE",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyDiscountExpiredCode(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/apply-discount", id), map[string]string{
		"discountCode": "EXPIRED20",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetShippingAddress(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/shipping", id), map[string]any{
		"shippingAddress": map[string]string{"country": "UK"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "shippingCost", "5.99")

	resp, body = f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/shipping", id), map[string]any{
		"shippingAddress": map[string]string{"country": "France"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "shippingCost", "8.99")
}

func TestSetShippingAddressRequiresCountry(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/shipping", id), map[string]any{
		"shippingAddress": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	resp, err := f.server.Client().Get(f.server.URL + "/products")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []ProductResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 3)

	byName := make(map[string]ProductResponse, len(products))
	for _, p := range products {
		byName[p.Name] = p
	}
	mouse := byName["Wireless Mouse"]
	assert.True(t, mouse.IsDiscounted)
	assert.True(t, mouse.EffectivePrice.Equal(decimal.RequireFromString("25.00")))

	laptop := byName["Laptop"]
	assert.True(t, laptop.EffectivePrice.Equal(laptop.Price))
}

func TestTotals(t *testing.T) {
	f := newFixture(t)
	id := f.createBasket(t)

	_, _ = f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/items", id), map[string]any{
		"items": []map[string]any{{"productId": f.mouse.ID, "quantity": 1}},
	})
	_, _ = f.do(t, http.MethodPost, fmt.Sprintf("/baskets/%s/shipping", id), map[string]any{
		"shippingAddress": map[string]string{"country": "UK"},
	})

	// 25 + 5.99 = 30.99, plus 20% VAT = 37.188 with no rounding.
	resp, body := f.do(t, http.MethodGet, fmt.Sprintf("/baskets/%s/total", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "total", "37.188")

	resp, body = f.do(t, http.MethodGet, fmt.Sprintf("/baskets/%s/total/excluding-vat", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, body, "total", "30.99")
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/cart"
	"storefront/internal/storetest"
)

type cartResponse struct {
	Data cart.View `json:"data"`
}

func TestCartEndpoints(t *testing.T) {
	h := newHarness(t)
	item := h.store.PutItem(storetest.NewItem("Tee", 100, 80, "M", "Red", 5))

	rec := h.do(http.MethodGet, "/cart", nil, h.user)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[cartResponse](t, rec).Data.Cart.Items)

	add := AddCartItemRequest{ItemID: item.ID.Hex(), Quantity: 2, Size: "m", Color: "red"}
	requireStatus(t, h.do(http.MethodPost, "/cart/items", add, h.user), http.StatusOK)
	rec = h.do(http.MethodPost, "/cart/items", add, h.user)
	requireStatus(t, rec, http.StatusOK)

	view := decode[cartResponse](t, rec).Data
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, 4, view.Cart.Items[0].Quantity)
	assert.Equal(t, 4, view.Summary.ItemCount)
	assert.Equal(t, 320.0, view.Summary.Subtotal)
	assert.Equal(t, 80.0, view.Summary.Savings)

	entryPath := "/cart/items/" + view.Cart.Items[0].ID.Hex()
	qty := 1
	rec = h.do(http.MethodPatch, entryPath, UpdateCartItemRequest{Quantity: &qty}, h.user)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, 1, decode[cartResponse](t, rec).Data.Cart.Items[0].Quantity)

	rec = h.do(http.MethodPatch, entryPath, UpdateCartItemRequest{}, h.user)
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "nothing to update", decode[errorBody](t, rec).Error)

	rec = h.do(http.MethodDelete, entryPath, nil, h.user)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[cartResponse](t, rec).Data.Cart.Items)
}

func TestAddCartItemRejections(t *testing.T) {
	h := newHarness(t)
	item := h.store.PutItem(storetest.NewItem("Tee", 100, 0, "M", "Red", 5))

	tests := []struct {
		name   string
		req    AddCartItemRequest
		status int
		code   string
	}{
		{"quantity too large", AddCartItemRequest{ItemID: item.ID.Hex(), Quantity: 100, Size: "M", Color: "Red"}, http.StatusBadRequest, apperr.CodeValidation},
		{"size not offered", AddCartItemRequest{ItemID: item.ID.Hex(), Quantity: 1, Size: "XL", Color: "Red"}, http.StatusBadRequest, apperr.CodeItemUnavailable},
		{"color not offered", AddCartItemRequest{ItemID: item.ID.Hex(), Quantity: 1, Size: "M", Color: "Blue"}, http.StatusBadRequest, apperr.CodeItemUnavailable},
		{"unknown item", AddCartItemRequest{ItemID: storetest.NewItem("Ghost", 1, 0, "M", "Red", 1).ID.Hex(), Quantity: 1, Size: "M", Color: "Red"}, http.StatusNotFound, apperr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/cart/items", tt.req, h.user)
			requireStatus(t, rec, tt.status)
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}

	requireStatus(t, h.do(http.MethodPost, "/cart/items", AddCartItemRequest{ItemID: "x", Quantity: 1, Size: "M", Color: "Red"}, h.user), http.StatusBadRequest)
}

func TestClearCartEndpoint(t *testing.T) {
	h := newHarness(t)
	item := h.store.PutItem(storetest.NewItem("Tee", 100, 0, "M", "Red", 5))
	h.store.PutCart(h.user.ID, storetest.EntryFor(item, "M", "Red", 2))

	rec := h.do(http.MethodDelete, "/cart", nil, h.user)
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decode[cartResponse](t, rec).Data.Cart.Items)

	stored, ok := h.store.CartOf(h.user.ID)
	require.True(t, ok)
	assert.Empty(t, stored.Items)
}

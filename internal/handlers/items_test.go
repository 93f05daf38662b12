package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/storetest"
)

func TestGetItemEndpoint(t *testing.T) {
	h := newHarness(t)
	item := h.store.PutItem(storetest.NewItem("Tee", 100, 80, "M", "Red", 4))

	rec := h.do(http.MethodGet, "/items/"+item.ID.Hex(), nil, h.user)
	requireStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Data ItemResponse `json:"data"`
	}](t, rec).Data
	assert.Equal(t, 80.0, got.EffectivePrice)
	assert.True(t, got.OnSale)
	assert.Equal(t, 4, got.TotalStock)
	assert.True(t, got.InStock)

	hidden := storetest.NewItem("Retired", 10, 0, "M", "Red", 1)
	hidden.IsActive = false
	h.store.PutItem(hidden)
	requireStatus(t, h.do(http.MethodGet, "/items/"+hidden.ID.Hex(), nil, h.user), http.StatusNotFound)
	requireStatus(t, h.do(http.MethodGet, "/items/"+primitive.NewObjectID().Hex(), nil, h.user), http.StatusNotFound)
	requireStatus(t, h.do(http.MethodGet, "/items/zzz", nil, h.user), http.StatusBadRequest)
}

func TestSetItemStockEndpoint(t *testing.T) {
	h := newHarness(t)
	item := h.store.PutItem(storetest.NewItem("Tee", 100, 0, "M", "Red", 4))
	path := "/admin/api/items/" + item.ID.Hex() + "/stock"
	stock := func(n int) *int { return &n }

	requireStatus(t, h.do(http.MethodPut, path, StockUpdateRequest{Size: "M", Color: "Red", Stock: stock(9)}, h.user), http.StatusForbidden)

	rec := h.do(http.MethodPut, path, StockUpdateRequest{Size: "m", Color: "RED", Stock: stock(9)}, h.admin)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, 9, h.store.Stock(item.ID, "M", "Red"))

	requireStatus(t, h.do(http.MethodPut, path, StockUpdateRequest{Size: "M", Color: "Red", Stock: stock(-1)}, h.admin), http.StatusBadRequest)
	requireStatus(t, h.do(http.MethodPut, path, StockUpdateRequest{Size: "L", Color: "Red", Stock: stock(1)}, h.admin), http.StatusNotFound)
	requireStatus(t, h.do(http.MethodPut, path, StockUpdateRequest{Size: "M", Color: "Red"}, h.admin), http.StatusBadRequest)
	assert.Equal(t, 9, h.store.Stock(item.ID, "M", "Red"))
}

func TestBuildItemFilter(t *testing.T) {
	category := primitive.NewObjectID()

	filter, err := buildItemFilter(url.Values{
		"category": {category.Hex()},
		"search":   {"a+b"},
		"minPrice": {"10"},
		"maxPrice": {"50.5"},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, true, filter["isActive"])
	assert.Equal(t, category, filter["categoryId"])
	assert.Equal(t, bson.M{"$gte": 10.0, "$lte": 50.5}, filter["price"])

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\+b`, "$options": "i"}}, or[0])

	admin, err := buildItemFilter(url.Values{"isActive": {"false"}}, false)
	require.NoError(t, err)
	assert.Equal(t, false, admin["isActive"])

	for _, bad := range []url.Values{
		{"category": {"nope"}},
		{"subcategory": {"123"}},
		{"minPrice": {"-1"}},
		{"maxPrice": {"cheap"}},
	} {
		_, err := buildItemFilter(bad, true)
		assert.Error(t, err, bad.Encode())
	}
}

func TestItemSort(t *testing.T) {
	assert.Equal(t, "price", itemSort("price_asc")[0].Key)
	assert.Equal(t, -1, itemSort("price_desc")[0].Value)
	assert.Equal(t, "rating", itemSort("rating")[0].Key)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, itemSort("whatever"))
}

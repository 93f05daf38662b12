package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/events"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/storetest"
)

const testSecret = "test-secret"

type harness struct {
	t        *testing.T
	store    *storetest.Store
	events   *events.Recorder
	router   *gin.Engine
	user     models.User
	other    models.User
	admin    models.User
	shipping models.Address
	billing  models.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{t: t, store: storetest.New(), events: &events.Recorder{}}
	h.user = h.store.AddUser("Ada Buyer", models.RoleUser)
	h.other = h.store.AddUser("Other Buyer", models.RoleUser)
	h.admin = h.store.AddUser("Shop Admin", models.RoleAdmin)
	h.shipping = h.store.AddAddress(h.user.ID, true)
	h.billing = h.store.AddAddress(h.user.ID, false)

	orderService, err := orders.NewService(orders.Deps{
		Orders:     h.store.Orders(),
		Items:      h.store.Items(),
		Carts:      h.store.Carts(),
		Addresses:  h.store.Addresses(),
		Users:      h.store.Users(),
		UnitOfWork: h.store,
		Events:     h.events,
	})
	require.NoError(t, err)
	cartService := cart.NewService(h.store.Carts(), h.store.Items(), nil)

	r := gin.New()
	r.GET("/items/:id", GetItem(h.store.Items()))

	user := r.Group("/", middleware.UserAuth(testSecret))
	user.GET("/cart", GetCart(cartService))
	user.DELETE("/cart", ClearCart(cartService))
	user.POST("/cart/items", AddCartItem(cartService))
	user.PATCH("/cart/items/:entryId", UpdateCartItem(cartService))
	user.DELETE("/cart/items/:entryId", RemoveCartItem(cartService))

	user.GET("/addresses", ListAddresses(h.store.Addresses()))
	user.POST("/addresses", CreateAddress(h.store.Addresses()))
	user.PUT("/addresses/:id", UpdateAddress(h.store.Addresses()))
	user.DELETE("/addresses/:id", DeleteAddress(h.store.Addresses()))
	user.POST("/addresses/:id/default", SetDefaultAddress(h.store.Addresses()))

	user.GET("/auth/me", GetMe(h.store.Users()))
	user.GET("/wishlist", GetWishlist(h.store.Users(), h.store.Items()))

	user.POST("/orders", CreateOrder(orderService))
	user.GET("/orders", ListOrders(orderService))
	user.GET("/orders/stats", OrderStats(orderService))
	user.GET("/orders/:orderId", GetOrder(orderService))
	user.GET("/orders/:orderId/timeline", GetOrderTimeline(orderService))
	user.PATCH("/orders/:orderId/status", UpdateOrderStatus(orderService))
	user.PATCH("/orders/:orderId/payment-status", UpdateOrderPaymentStatus(orderService))
	user.POST("/orders/:orderId/cancel", CancelOrder(orderService))
	user.POST("/orders/:orderId/return", ReturnOrder(orderService))
	user.POST("/orders/:orderId/reorder", ReorderOrder(orderService))

	admin := r.Group("/admin/api", middleware.AdminAuth(testSecret))
	admin.PUT("/items/:id/stock", SetItemStock(h.store.Items()))
	admin.PATCH("/orders/:orderId/tracking", UpdateOrderTracking(orderService))
	admin.DELETE("/orders/:orderId", DeleteOrder(orderService))

	h.router = r
	return h
}

func (h *harness) token(user models.User) string {
	h.t.Helper()
	token, err := signAccessToken(user, testSecret, time.Hour, time.Now())
	require.NoError(h.t, err)
	return token
}

// do sends a JSON request as the given user. A zero user sends no token.
func (h *harness) do(method, path string, body any, as models.User) *httptest.ResponseRecorder {
	h.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !as.ID.IsZero() {
		req.Header.Set("Authorization", "Bearer "+h.token(as))
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details any    `json:"details"`
}

// detail reads one key of an object-shaped details payload.
func (b errorBody) detail(key string) any {
	fields, _ := b.Details.(map[string]any)
	return fields[key]
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

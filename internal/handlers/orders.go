package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/orders"
)

type CreateOrderRequest struct {
	ShippingAddressID string  `json:"shippingAddressId" binding:"required"`
	BillingAddressID  string  `json:"billingAddressId" binding:"required"`
	PaymentMethod     string  `json:"paymentMethod" binding:"required"`
	Notes             string  `json:"notes" binding:"max=1000"`
	Tax               float64 `json:"tax" binding:"gte=0"`
	ShippingCharges   float64 `json:"shippingCharges" binding:"gte=0"`
	Discount          float64 `json:"discount" binding:"gte=0"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type PaymentDetailsRequest struct {
	TransactionID string     `json:"transactionId"`
	Gateway       string     `json:"gateway"`
	PaymentDate   *time.Time `json:"paymentDate"`
	FailureReason string     `json:"failureReason"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus  string                 `json:"paymentStatus" binding:"required"`
	PaymentDetails *PaymentDetailsRequest `json:"paymentDetails"`
}

type OrderReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber" binding:"required"`
	Courier        string `json:"courier"`
}

// parseObjectIDField validates an id carried in a JSON body.
func parseObjectIDField(field, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
	if err != nil {
		return primitive.NilObjectID, apperr.Validationf("%s is invalid", field)
	}
	return id, nil
}

func CreateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		shippingID, err := parseObjectIDField("shippingAddressId", req.ShippingAddressID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		billingID, err := parseObjectIDField("billingAddressId", req.BillingAddressID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Create(ctx, orders.CreateInput{
			UserID:            userID,
			ShippingAddressID: shippingID,
			BillingAddressID:  billingID,
			PaymentMethod:     models.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
			Notes:             strings.TrimSpace(req.Notes),
			Tax:               req.Tax,
			ShippingCharges:   req.ShippingCharges,
			Discount:          req.Discount,
		})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "order placed", "data": view})
	}
}

func ListOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		query := orders.ListQuery{
			Viewer: actor,
			Status: models.OrderStatus(strings.TrimSpace(c.Query("status"))),
			Page:   int(page),
			Limit:  int(limit),
		}
		if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
			id, err := parseObjectIDField("userId", raw)
			if err != nil {
				respondAppError(c, route, err)
				return
			}
			query.UserID = &id
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := svc.List(ctx, query)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": result.Orders,
			"pagination": gin.H{
				"page":  result.Page,
				"limit": result.Limit,
				"total": result.Total,
			},
		})
	}
}

// parseStatsDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates. A
// plain "to" date covers the whole day.
func parseStatsDate(field, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.Validationf("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", field)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func OrderStats(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/stats"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}

		from, err := parseStatsDate("from", c.Query("from"), false)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		to, err := parseStatsDate("to", c.Query("to"), true)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		query := orders.StatsQuery{Viewer: actor, From: from, To: to}
		if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
			id, err := parseObjectIDField("userId", raw)
			if err != nil {
				respondAppError(c, route, err)
				return
			}
			query.UserID = &id
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		stats, err := svc.Stats(ctx, query)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": stats})
	}
}

func GetOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderId"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Get(ctx, orderID, actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": view})
	}
}

func GetOrderTimeline(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderId/timeline"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		timeline, err := svc.OrderTimeline(ctx, orderID, actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": timeline})
	}
}

func UpdateOrderStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:orderId/status"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}
		if !actor.IsAdmin() {
			respondAppError(c, route, apperr.Forbidden("only admins can change order status"))
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		status := models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		view, err := svc.UpdateStatus(ctx, orderID, status, req.Notes, actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order status updated", "data": view})
	}
}

func UpdateOrderPaymentStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:orderId/payment-status"
		defer handlePanic(c, route)

		actor, ok := currentActor(c, route)
		if !ok {
			return
		}
		if !actor.IsAdmin() {
			respondAppError(c, route, apperr.Forbidden("only admins can change payment status"))
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		var req UpdatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		var details models.PaymentDetails
		if req.PaymentDetails != nil {
			details = models.PaymentDetails{
				TransactionID: strings.TrimSpace(req.PaymentDetails.TransactionID),
				Gateway:       strings.TrimSpace(req.PaymentDetails.Gateway),
				PaymentDate:   req.PaymentDetails.PaymentDate,
				FailureReason: strings.TrimSpace(req.PaymentDetails.FailureReason),
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		status := models.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
		view, err := svc.UpdatePaymentStatus(ctx, orderID, status, details)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "payment status updated", "data": view})
	}
}

// bindOptionalReason accepts an empty body as "no reason given".
func bindOptionalReason(c *gin.Context) (string, bool) {
	var req OrderReasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return "", false
	}
	return req.Reason, true
}

func CancelOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:orderId/cancel"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}
		reason, ok := bindOptionalReason(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Cancel(ctx, orderID, userID, reason)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order cancelled", "data": view})
	}
}

func ReturnOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:orderId/return"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}
		reason, ok := bindOptionalReason(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Return(ctx, orderID, userID, reason)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "return requested", "data": view})
	}
}

func ReorderOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:orderId/reorder"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := svc.Reorder(ctx, orderID, userID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":          "items added to cart",
			"addedToCart":      result.AddedToCart,
			"unavailableItems": result.UnavailableItems,
			"data":             result.Cart,
		})
	}
}

func UpdateOrderTracking(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/api/orders/:orderId/tracking"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		var req UpdateTrackingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.UpdateTracking(ctx, orderID, req.TrackingNumber, req.Courier)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "tracking updated", "data": view})
	}
}

func DeleteOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:orderId"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, route, "orderId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := svc.Delete(ctx, orderID); err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

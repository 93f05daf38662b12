package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/cart"
)

type AddCartItemRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Size     string `json:"size" binding:"required"`
	Color    string `json:"color" binding:"required"`
	Note     string `json:"note"`
}

type UpdateCartItemRequest struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note"`
}

func GetCart(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Get(ctx, userID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": view})
	}
}

func AddCartItem(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/items"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		itemID, err := parseObjectIDField("itemId", req.ItemID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.AddItem(ctx, userID, cart.AddInput{
			ItemID:   itemID,
			Quantity: req.Quantity,
			Size:     strings.TrimSpace(req.Size),
			Color:    strings.TrimSpace(req.Color),
			Note:     strings.TrimSpace(req.Note),
		})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "item added to cart", "data": view})
	}
}

func UpdateCartItem(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /cart/items/:entryId"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		entryID, ok := objectIDParam(c, route, "entryId")
		if !ok {
			return
		}

		var req UpdateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Quantity == nil && req.Note == nil {
			respondWithError(c, http.StatusBadRequest, route, "nothing to update")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.UpdateItem(ctx, userID, entryID, cart.UpdateInput{Quantity: req.Quantity, Note: req.Note})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart updated", "data": view})
	}
}

func RemoveCartItem(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/items/:entryId"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		entryID, ok := objectIDParam(c, route, "entryId")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.RemoveItem(ctx, userID, entryID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "item removed", "data": view})
	}
}

func ClearCart(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := svc.Clear(ctx, userID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "cart cleared", "data": view})
	}
}

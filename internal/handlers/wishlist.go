package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/repository"
	"storefront/internal/repository/mongodb"
)

type WishlistRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

// GetWishlist returns the wishlisted items still on sale, in the order they
// were added.
func GetWishlist(users repository.UserRepository, items repository.ItemRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /wishlist"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if len(user.Wishlist) == 0 {
			c.JSON(http.StatusOK, gin.H{"data": []ItemResponse{}})
			return
		}

		found, err := items.FindByIDs(ctx, user.Wishlist)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		ordered := make([]ItemResponse, 0, len(found))
		for _, id := range user.Wishlist {
			if item, ok := found[id]; ok && item.Available() {
				ordered = append(ordered, newItemResponse(item))
			}
		}

		c.JSON(http.StatusOK, gin.H{"data": ordered})
	}
}

func AddToWishlist(db *mongo.Database, items repository.ItemRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /wishlist"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req WishlistRequest
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

		item, err := items.FindByID(ctx, itemID)
		if err != nil || !item.Available() {
			if err == nil || errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusBadRequest, route, "invalid itemId")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := updateWishlist(c, db, userID, bson.M{"$addToSet": bson.M{"wishlist": itemID}}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "wishlist updated"})
	}
}

func RemoveFromWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /wishlist/:itemId"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, route, "itemId")
		if !ok {
			return
		}

		if err := updateWishlist(c, db, userID, bson.M{"$pull": bson.M{"wishlist": itemID}}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "wishlist updated"})
	}
}

func updateWishlist(c *gin.Context, db *mongo.Database, userID primitive.ObjectID, update bson.M) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	_, err := db.Collection(mongodb.CollectionUsers).UpdateByID(ctx, userID, update)
	return err
}

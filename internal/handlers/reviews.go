package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/repository/mongodb"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title" binding:"max=120"`
	Comment string `json:"comment" binding:"max=2000"`
}

func GetItemReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /items/:id/reviews"
		defer handlePanic(c, route)

		itemID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection(mongodb.CollectionReviews)
		filter := bson.M{"itemId": itemID}
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := coll.Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page-1)*limit).
			SetLimit(limit))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		reviews := []models.Review{}
		if err := cursor.All(ctx, &reviews); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": reviews,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}

// CreateReview accepts one review per user per item, then refreshes the
// item's rating summary.
func CreateReview(db *mongo.Database, items repository.ItemRepository, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /items/:id/reviews"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		item, err := items.FindByID(ctx, itemID)
		if err != nil || !item.Available() {
			if err == nil || errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "item not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}

		now := time.Now().UTC()
		review := models.Review{
			ID:        primitive.NewObjectID(),
			ItemID:    itemID,
			UserID:    userID,
			UserName:  user.Name,
			Rating:    req.Rating,
			Title:     strings.TrimSpace(req.Title),
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: now,
			UpdatedAt: now,
		}

		if _, err := db.Collection(mongodb.CollectionReviews).InsertOne(ctx, review); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "you have already reviewed this item")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := recomputeItemRating(ctx, db, itemID); err != nil {
			logging.Named("review").Warn("rating recompute failed", zap.Error(err), zap.String("itemId", itemID.Hex()))
		}

		c.JSON(http.StatusCreated, gin.H{"data": review})
	}
}

func DeleteReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		reviewID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection(mongodb.CollectionReviews)
		var review models.Review
		if err := coll.FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "review not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if review.UserID != userID && !isAdmin(c) {
			respondWithError(c, http.StatusForbidden, route, "not allowed to delete this review")
			return
		}

		if _, err := coll.DeleteOne(ctx, bson.M{"_id": reviewID}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := recomputeItemRating(ctx, db, review.ItemID); err != nil {
			logging.Named("review").Warn("rating recompute failed", zap.Error(err), zap.String("itemId", review.ItemID.Hex()))
		}

		c.JSON(http.StatusOK, gin.H{"message": "review deleted"})
	}
}

type ratingSummary struct {
	Average float64 `bson:"average"`
	Count   int     `bson:"count"`
}

// roundRating keeps one decimal place.
func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func recomputeItemRating(ctx context.Context, db *mongo.Database, itemID primitive.ObjectID) error {
	cursor, err := db.Collection(mongodb.CollectionReviews).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"itemId": itemID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var summary ratingSummary
	if cursor.Next(ctx) {
		if err := cursor.Decode(&summary); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	_, err = db.Collection(mongodb.CollectionItems).UpdateByID(ctx, itemID, bson.M{"$set": bson.M{
		"rating":      roundRating(summary.Average),
		"reviewCount": summary.Count,
	}})
	return err
}

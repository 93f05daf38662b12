package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/repository/mongodb"
)

type BannerRequest struct {
	Title    string     `json:"title" binding:"required,max=120"`
	Subtitle string     `json:"subtitle" binding:"max=240"`
	ImageURL string     `json:"imageUrl" binding:"required,url"`
	LinkURL  string     `json:"linkUrl"`
	Position int        `json:"position" binding:"gte=0"`
	IsActive *bool      `json:"isActive"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

func (req BannerRequest) validateSchedule() error {
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return errors.New("endsAt must be after startsAt")
	}
	return nil
}

var bannerSort = options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: -1}})

// liveBannerFilter matches active banners whose schedule covers now.
func liveBannerFilter(now time.Time) bson.M {
	return bson.M{
		"isActive": true,
		"$and": bson.A{
			bson.M{"$or": bson.A{bson.M{"startsAt": nil}, bson.M{"startsAt": bson.M{"$lte": now}}}},
			bson.M{"$or": bson.A{bson.M{"endsAt": nil}, bson.M{"endsAt": bson.M{"$gte": now}}}},
		},
	}
}

func GetBanners(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /banners"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		cursor, err := db.Collection(mongodb.CollectionBanners).Find(ctx, liveBannerFilter(now), bannerSort)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		banners := []models.Banner{}
		if err := cursor.All(ctx, &banners); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		live := banners[:0]
		for _, banner := range banners {
			if banner.LiveAt(now) {
				live = append(live, banner)
			}
		}

		c.JSON(http.StatusOK, gin.H{"data": live})
	}
}

func GetAllBanners(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/banners"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		cursor, err := db.Collection(mongodb.CollectionBanners).Find(ctx, bson.M{}, bannerSort)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		banners := []models.Banner{}
		if err := cursor.All(ctx, &banners); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": banners})
	}
}

func CreateBanner(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/banners"
		defer handlePanic(c, route)

		var req BannerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := req.validateSchedule(); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		now := time.Now().UTC()
		banner := models.Banner{
			ID:        primitive.NewObjectID(),
			Title:     strings.TrimSpace(req.Title),
			Subtitle:  strings.TrimSpace(req.Subtitle),
			ImageURL:  strings.TrimSpace(req.ImageURL),
			LinkURL:   strings.TrimSpace(req.LinkURL),
			Position:  req.Position,
			IsActive:  isActive,
			StartsAt:  req.StartsAt,
			EndsAt:    req.EndsAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := db.Collection(mongodb.CollectionBanners).InsertOne(ctx, banner); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": banner})
	}
}

// UpdateBanner replaces every editable field.
func UpdateBanner(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/banners/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req BannerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := req.validateSchedule(); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		set := bson.M{
			"title":     strings.TrimSpace(req.Title),
			"subtitle":  strings.TrimSpace(req.Subtitle),
			"imageUrl":  strings.TrimSpace(req.ImageURL),
			"linkUrl":   strings.TrimSpace(req.LinkURL),
			"position":  req.Position,
			"startsAt":  req.StartsAt,
			"endsAt":    req.EndsAt,
			"updatedAt": time.Now().UTC(),
		}
		if req.IsActive != nil {
			set["isActive"] = *req.IsActive
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Banner
		err := db.Collection(mongodb.CollectionBanners).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "banner not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": updated})
	}
}

func DeleteBanner(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/banners/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection(mongodb.CollectionBanners).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "banner not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "banner deleted"})
	}
}

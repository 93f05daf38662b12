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
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repository/mongodb"
)

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=80"`
	Description string `json:"description" binding:"max=500"`
	ImageURL    string `json:"imageUrl"`
	IsActive    *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	IsActive    *bool   `json:"isActive"`
}

type SubcategoryCreateRequest struct {
	CategoryID  string `json:"categoryId" binding:"required"`
	Name        string `json:"name" binding:"required,max=80"`
	Description string `json:"description" binding:"max=500"`
	IsActive    *bool  `json:"isActive"`
}

type SubcategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

/*
GET /categories
- Active categories only, alphabetical
*/
func GetCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
		cursor, err := db.Collection(mongodb.CollectionCategories).Find(ctx, bson.M{"isActive": true}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		categories := []models.Category{}
		if err := cursor.All(ctx, &categories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

/*
GET /categories/:id/subcategories
*/
func GetSubcategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:id/subcategories"
		defer handlePanic(c, route)

		categoryID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
		cursor, err := db.Collection(mongodb.CollectionSubcategories).Find(ctx, bson.M{
			"categoryId": categoryID,
			"isActive":   true,
		}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		subcategories := []models.Subcategory{}
		if err := cursor.All(ctx, &subcategories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": subcategories})
	}
}

/*
GET /admin/api/categories
- Includes inactive categories, ?isActive=true/false filters
*/
func GetAllCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/categories"
		defer handlePanic(c, route)

		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection(mongodb.CollectionCategories).Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		categories := []models.Category{}
		if err := cursor.All(ctx, &categories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

/*
POST /admin/api/categories
- Names are unique (index on categories.name)
*/
func CreateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/categories"
		defer handlePanic(c, route)

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		now := time.Now().UTC()
		category := models.Category{
			ID:          primitive.NewObjectID(),
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			ImageURL:    strings.TrimSpace(req.ImageURL),
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := db.Collection(mongodb.CollectionCategories).InsertOne(ctx, category); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logging.Named("catalog").Info("category created", zap.String("categoryId", category.ID.Hex()), zap.String("name", name))
		c.JSON(http.StatusCreated, gin.H{"data": category})
	}
}

/*
PUT /admin/api/categories/:id
*/
func UpdateCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.ImageURL != nil {
			update["imageUrl"] = strings.TrimSpace(*req.ImageURL)
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now().UTC()

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Category
		err := db.Collection(mongodb.CollectionCategories).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		case mongo.IsDuplicateKeyError(err):
			respondWithError(c, http.StatusConflict, route, "category already exists")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": updated})
	}
}

/*
DELETE /admin/api/categories/:id
- Soft delete, hides the category and its subcategories
*/
func DeleteCategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		result, err := db.Collection(mongodb.CollectionCategories).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": now}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}

		if _, err := db.Collection(mongodb.CollectionSubcategories).UpdateMany(ctx,
			bson.M{"categoryId": id},
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": now}},
		); err != nil {
			logging.Named("catalog").Warn("deactivating subcategories failed", zap.Error(err), zap.String("categoryId", id.Hex()))
		}

		c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
	}
}

/*
POST /admin/api/subcategories
- Names are unique per category
*/
func CreateSubcategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/subcategories"
		defer handlePanic(c, route)

		var req SubcategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		categoryID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.CategoryID))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid categoryId")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := db.Collection(mongodb.CollectionCategories).FindOne(ctx, bson.M{"_id": categoryID, "isActive": true}).Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusBadRequest, route, "category not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		now := time.Now().UTC()
		subcategory := models.Subcategory{
			ID:          primitive.NewObjectID(),
			CategoryID:  categoryID,
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if _, err := db.Collection(mongodb.CollectionSubcategories).InsertOne(ctx, subcategory); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "subcategory already exists in this category")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": subcategory})
	}
}

/*
PUT /admin/api/subcategories/:id
*/
func UpdateSubcategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/subcategories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req SubcategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now().UTC()

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Subcategory
		err := db.Collection(mongodb.CollectionSubcategories).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			respondWithError(c, http.StatusNotFound, route, "subcategory not found")
			return
		case mongo.IsDuplicateKeyError(err):
			respondWithError(c, http.StatusConflict, route, "subcategory already exists in this category")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": updated})
	}
}

func DeleteSubcategory(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/subcategories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := db.Collection(mongodb.CollectionSubcategories).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "subcategory not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "subcategory deleted"})
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
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

type ItemRequest struct {
	Name          string        `json:"name" binding:"required,max=200"`
	Description   string        `json:"description" binding:"max=5000"`
	Brand         string        `json:"brand" binding:"max=120"`
	CategoryID    string        `json:"categoryId" binding:"required"`
	SubcategoryID string        `json:"subcategoryId"`
	Price         float64       `json:"price" binding:"required,gt=0"`
	DiscountPrice float64       `json:"discountPrice" binding:"gte=0"`
	Images        []string      `json:"images"`
	Tags          []string      `json:"tags"`
	Sizes         []SizeRequest `json:"sizes" binding:"required,min=1,dive"`
	IsActive      *bool         `json:"isActive"`
}

type ItemUpdateRequest struct {
	Name          *string       `json:"name"`
	Description   *string       `json:"description"`
	Brand         *string       `json:"brand"`
	CategoryID    *string       `json:"categoryId"`
	SubcategoryID *string       `json:"subcategoryId"`
	Price         *float64      `json:"price"`
	DiscountPrice *float64      `json:"discountPrice"`
	Images        []string      `json:"images"`
	Tags          []string      `json:"tags"`
	Sizes         []SizeRequest `json:"sizes" binding:"omitempty,dive"`
	IsActive      *bool         `json:"isActive"`
}

type StockUpdateRequest struct {
	Size  string `json:"size" binding:"required"`
	Color string `json:"color" binding:"required"`
	Stock *int   `json:"stock" binding:"required"`
}

// ItemResponse adds the derived selling fields to a catalog item.
type ItemResponse struct {
	models.Item
	EffectivePrice float64 `json:"effectivePrice"`
	OnSale         bool    `json:"onSale"`
	TotalStock     int     `json:"totalStock"`
	InStock        bool    `json:"inStock"`
}

func newItemResponse(item models.Item) ItemResponse {
	total := item.TotalStock()
	return ItemResponse{
		Item:           item,
		EffectivePrice: models.EffectivePrice(item.Price, item.DiscountPrice),
		OnSale:         isItemOnSale(item.Price, item.DiscountPrice),
		TotalStock:     total,
		InStock:        total > 0,
	}
}

func newItemResponses(items []models.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newItemResponse(item))
	}
	return out
}

// buildItemFilter translates list query parameters. Public listings only
// see active items; deleted items are hidden from everyone.
func buildItemFilter(query url.Values, public bool) (bson.M, error) {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}
	if public {
		filter["isActive"] = true
	} else if v := strings.TrimSpace(query.Get("isActive")); v != "" {
		filter["isActive"] = v == "true"
	}

	for param, field := range map[string]string{"category": "categoryId", "subcategory": "subcategoryId"} {
		raw := strings.TrimSpace(query.Get(param))
		if raw == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", param)
		}
		filter[field] = id
	}

	if brand := strings.TrimSpace(query.Get("brand")); brand != "" {
		filter["brand"] = bson.M{"$regex": "^" + regexp.QuoteMeta(brand) + "$", "$options": "i"}
	}

	if search := strings.TrimSpace(query.Get("search")); search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"brand": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"tags": strings.ToLower(search)},
		}
	}

	priceRange := bson.M{}
	for param, op := range map[string]string{"minPrice": "$gte", "maxPrice": "$lte"} {
		raw := strings.TrimSpace(query.Get(param))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("invalid %s", param)
		}
		priceRange[op] = value
	}
	if len(priceRange) > 0 {
		filter["price"] = priceRange
	}

	return filter, nil
}

func itemSort(sort string) bson.D {
	switch sort {
	case "price_asc":
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case "price_desc":
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case "rating":
		return bson.D{{Key: "rating", Value: -1}, {Key: "reviewCount", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

func listItems(c *gin.Context, db *mongo.Database, route string, public bool) {
	if err := ensureDBConnection(c.Request.Context(), db); err != nil {
		respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
		return
	}

	filter, err := buildItemFilter(c.Request.URL.Query(), public)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, err.Error())
		return
	}

	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	coll := db.Collection(mongodb.CollectionItems)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}

	findOptions := options.Find().
		SetSort(itemSort(c.Query("sort"))).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := coll.Find(ctx, filter, findOptions)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}
	defer cursor.Close(ctx)

	items := []models.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "decode error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": newItemResponses(items),
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

/*
GET /items
- category, subcategory, brand, search, minPrice, maxPrice, sort, page, limit
*/
func GetItems(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /items"
		defer handlePanic(c, route)
		listItems(c, db, route, true)
	}
}

func GetAllItems(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/items"
		defer handlePanic(c, route)
		listItems(c, db, route, false)
	}
}

func GetItem(items repository.ItemRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /items/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		item, err := items.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "item not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if !item.Available() && !isAdmin(c) {
			respondWithError(c, http.StatusNotFound, route, "item not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": newItemResponse(item)})
	}
}

// resolveItemCategory checks the category, and the subcategory when given,
// exist and are active.
func resolveItemCategory(ctx context.Context, db *mongo.Database, categoryRaw, subcategoryRaw string) (primitive.ObjectID, *primitive.ObjectID, error) {
	categoryID, err := primitive.ObjectIDFromHex(strings.TrimSpace(categoryRaw))
	if err != nil {
		return primitive.NilObjectID, nil, fmt.Errorf("invalid categoryId")
	}
	if err := db.Collection(mongodb.CollectionCategories).FindOne(ctx, bson.M{"_id": categoryID, "isActive": true}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, nil, fmt.Errorf("category not found: %s", categoryID.Hex())
		}
		return primitive.NilObjectID, nil, err
	}

	subcategoryRaw = strings.TrimSpace(subcategoryRaw)
	if subcategoryRaw == "" {
		return categoryID, nil, nil
	}
	subcategoryID, err := primitive.ObjectIDFromHex(subcategoryRaw)
	if err != nil {
		return primitive.NilObjectID, nil, fmt.Errorf("invalid subcategoryId")
	}
	if err := db.Collection(mongodb.CollectionSubcategories).FindOne(ctx, bson.M{
		"_id":        subcategoryID,
		"categoryId": categoryID,
		"isActive":   true,
	}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, nil, fmt.Errorf("subcategory %s does not belong to category %s", subcategoryID.Hex(), categoryID.Hex())
		}
		return primitive.NilObjectID, nil, err
	}
	return categoryID, &subcategoryID, nil
}

// buildItem validates a create request into a new catalog item.
func buildItem(ctx context.Context, db *mongo.Database, req ItemRequest, now time.Time) (models.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Item{}, fmt.Errorf("name required")
	}
	if err := models.ValidatePricing(req.Price, req.DiscountPrice); err != nil {
		return models.Item{}, err
	}
	sizes, err := normalizeVariants(req.Sizes, newSKUPrefix())
	if err != nil {
		return models.Item{}, err
	}
	categoryID, subcategoryID, err := resolveItemCategory(ctx, db, req.CategoryID, req.SubcategoryID)
	if err != nil {
		return models.Item{}, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return models.Item{
		ID:            primitive.NewObjectID(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Brand:         strings.TrimSpace(req.Brand),
		CategoryID:    categoryID,
		SubcategoryID: subcategoryID,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Images:        req.Images,
		Tags:          models.StringList(req.Tags),
		Sizes:         sizes,
		IsActive:      isActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func CreateItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/items"
		defer handlePanic(c, route)
		logger := logging.Named("catalog")

		var req ItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		item, err := buildItem(ctx, db, req, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		if _, err := db.Collection(mongodb.CollectionItems).InsertOne(ctx, item); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			logger.Error("item insert failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info("item created", zap.String("itemId", item.ID.Hex()), zap.Int("variants", len(item.Sizes)))
		c.JSON(http.StatusCreated, gin.H{"data": newItemResponse(item)})
	}
}

func UpdateItem(db *mongo.Database, items repository.ItemRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/items/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req ItemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := items.FindByID(ctx, id)
		if err != nil || existing.IsDeleted {
			if err == nil || errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "item not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
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
		if req.Brand != nil {
			update["brand"] = strings.TrimSpace(*req.Brand)
		}

		pricing, err := resolvePricingUpdate(existing.Price, existing.DiscountPrice, pricingUpdateInput{
			Price:         req.Price,
			DiscountPrice: req.DiscountPrice,
		})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if pricing.SetPrice {
			update["price"] = pricing.Price
		}
		if pricing.SetDiscountPrice {
			update["discountPrice"] = pricing.DiscountPrice
		}

		if req.CategoryID != nil || req.SubcategoryID != nil {
			categoryRaw := existing.CategoryID.Hex()
			if req.CategoryID != nil {
				categoryRaw = *req.CategoryID
			}
			subcategoryRaw := ""
			if req.SubcategoryID != nil {
				subcategoryRaw = *req.SubcategoryID
			} else if existing.SubcategoryID != nil && req.CategoryID == nil {
				subcategoryRaw = existing.SubcategoryID.Hex()
			}
			categoryID, subcategoryID, err := resolveItemCategory(ctx, db, categoryRaw, subcategoryRaw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			update["categoryId"] = categoryID
			update["subcategoryId"] = subcategoryID
		}

		if req.Images != nil {
			update["images"] = req.Images
		}
		if req.Tags != nil {
			update["tags"] = models.StringList(req.Tags)
		}
		if req.Sizes != nil {
			sizes, err := normalizeVariants(req.Sizes, newSKUPrefix())
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			update["sizes"] = sizes
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}

		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now().UTC()

		var updated models.Item
		err = db.Collection(mongodb.CollectionItems).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			respondWithError(c, http.StatusNotFound, route, "item not found")
			return
		case mongo.IsDuplicateKeyError(err):
			respondWithError(c, http.StatusConflict, route, "sku already exists")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": newItemResponse(updated)})
	}
}

func DeleteItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/items/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		result, err := db.Collection(mongodb.CollectionItems).UpdateOne(ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{"isDeleted": true, "isActive": false, "deletedAt": now, "updatedAt": now}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "item not found")
			return
		}

		logging.Named("catalog").Info("item deleted", zap.String("itemId", id.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
	}
}

// SetItemStock overwrites one variant's stock. Size and color are matched
// case-insensitively and stored under their catalog spelling.
func SetItemStock(items repository.ItemRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/items/:id/stock"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req StockUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if *req.Stock < 0 {
			respondWithError(c, http.StatusBadRequest, route, "stock must be zero or greater")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		item, err := items.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "item not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		size, found := item.FindSize(req.Size)
		if !found {
			respondWithError(c, http.StatusNotFound, route, "size not found")
			return
		}
		color, found := size.FindColor(req.Color)
		if !found {
			respondWithError(c, http.StatusNotFound, route, "color not found")
			return
		}

		if err := items.SetStock(ctx, id, size.Size, color.Name, *req.Stock); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "variant not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logging.Named("catalog").Info("stock set",
			zap.String("itemId", id.Hex()),
			zap.String("sku", color.SKU),
			zap.Int("from", color.Stock),
			zap.Int("to", *req.Stock),
		)
		c.JSON(http.StatusOK, gin.H{
			"message": "stock updated",
			"data": gin.H{
				"itemId": id,
				"size":   size.Size,
				"color":  color.Name,
				"sku":    color.SKU,
				"stock":  *req.Stock,
			},
		})
	}
}

package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/repository/mongodb"
)

func indexSet() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		mongodb.CollectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		},
		mongodb.CollectionOrders: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetName("orderNumber_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("userId_createdAt")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("status_createdAt")},
		},
		mongodb.CollectionItems: {
			{
				Keys: bson.D{{Key: "sizes.colors.sku", Value: 1}},
				Options: options.Index().
					SetName("sku_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"sizes.colors.sku": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "subcategoryId", Value: 1}}, Options: options.Index().SetName("category_subcategory")},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "isDeleted", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("listing")},
		},
		mongodb.CollectionCarts: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetName("active_cart_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isActive": true}),
			},
		},
		mongodb.CollectionAddresses: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("userId_createdAt")},
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetName("default_address_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isDefault": true}),
			},
		},
		mongodb.CollectionCategories: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_unique").SetUnique(true)},
		},
		mongodb.CollectionSubcategories: {
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("category_name_unique").SetUnique(true)},
		},
		mongodb.CollectionReviews: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetName("item_user_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("itemId_createdAt")},
		},
		mongodb.CollectionBanners: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "position", Value: 1}}, Options: options.Index().SetName("active_position")},
		},
		mongodb.CollectionRefreshTokens: {
			{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetName("tokenHash_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0)},
		},
	}
}

// EnsureIndexes creates every index the repositories and handlers rely on.
// It keeps going after a failure and returns all errors joined.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var errs []error
	for collection, models := range indexSet() {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			logger.Warn("index creation failed", zap.String("collection", collection), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Info("indexes ensured", zap.String("collection", collection), zap.Strings("indexes", names))
	}
	return errors.Join(errs...)
}

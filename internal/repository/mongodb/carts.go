package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type CartRepository struct {
	coll *mongo.Collection
}

func (r *CartRepository) FindActive(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	var cart models.Cart
	err := r.coll.FindOne(ctx, bson.M{"userId": userID, "isActive": true}).Decode(&cart)
	if cart.Items == nil {
		cart.Items = []models.CartEntry{}
	}
	return cart, translate(err)
}

func (r *CartRepository) Insert(ctx context.Context, cart *models.Cart) error {
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	if cart.Items == nil {
		cart.Items = []models.CartEntry{}
	}
	_, err := r.coll.InsertOne(ctx, cart)
	return translate(err)
}

func (r *CartRepository) Save(ctx context.Context, cart models.Cart) error {
	if cart.Items == nil {
		cart.Items = []models.CartEntry{}
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": cart.ID},
		bson.M{"$set": bson.M{"items": cart.Items, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Clear empties the user's active cart. A user without one is left alone.
func (r *CartRepository) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "isActive": true},
		bson.M{"$set": bson.M{"items": []models.CartEntry{}, "updatedAt": time.Now().UTC()}},
	)
	return err
}

package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type ItemRepository struct {
	coll *mongo.Collection
}

func (r *ItemRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Item, error) {
	var item models.Item
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	return item, translate(err)
}

func (r *ItemRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Item, error) {
	out := make(map[primitive.ObjectID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var item models.Item
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		out[item.ID] = item
	}
	return out, cursor.Err()
}

// AdjustStock applies delta with one conditional update. Decrements carry a
// stock >= |delta| guard on the addressed color so concurrent checkouts
// cannot drive it negative.
func (r *ItemRepository) AdjustStock(ctx context.Context, itemID primitive.ObjectID, size, color string, delta int) error {
	colorMatch := bson.M{"name": color}
	if delta < 0 {
		colorMatch["stock"] = bson.M{"$gte": -delta}
	}
	filter := bson.M{
		"_id": itemID,
		"sizes": bson.M{"$elemMatch": bson.M{
			"size":   size,
			"colors": bson.M{"$elemMatch": colorMatch},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"sizes.$[s].colors.$[c].stock": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, variantFilters(size, color))
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if delta >= 0 {
		return repository.ErrNotFound
	}

	exists, err := r.variantExists(ctx, itemID, size, color)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrInsufficientStock
	}
	return repository.ErrNotFound
}

func (r *ItemRepository) SetStock(ctx context.Context, itemID primitive.ObjectID, size, color string, stock int) error {
	filter := bson.M{
		"_id": itemID,
		"sizes": bson.M{"$elemMatch": bson.M{
			"size":        size,
			"colors.name": color,
		}},
	}
	update := bson.M{"$set": bson.M{
		"sizes.$[s].colors.$[c].stock": stock,
		"updatedAt":                    time.Now().UTC(),
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update, variantFilters(size, color))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ItemRepository) variantExists(ctx context.Context, itemID primitive.ObjectID, size, color string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{
		"_id": itemID,
		"sizes": bson.M{"$elemMatch": bson.M{
			"size":        size,
			"colors.name": color,
		}},
	})
	return count > 0, err
}

func variantFilters(size, color string) *options.UpdateOptions {
	return options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"s.size": size},
			bson.M{"c.name": color},
		},
	})
}

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

type OrderRepository struct {
	coll *mongo.Collection
}

var notDeleted = bson.M{"$ne": models.RecordDeleted}

func (r *OrderRepository) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, order)
	return translate(err)
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "recordState": notDeleted}).Decode(&order)
	return order, translate(err)
}

func (r *OrderRepository) Update(ctx context.Context, order models.Order) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": order.ID, "recordState": notDeleted}, order)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]models.Order, int64, error) {
	query := scopeFilter(filter.UserID)
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		opts.SetSkip(int64((page - 1) * filter.Limit)).SetLimit(int64(filter.Limit))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context, userID *primitive.ObjectID) ([]repository.StatusCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scopeFilter(userID)}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$totalAmount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := []repository.StatusCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *OrderRepository) RevenueByDay(ctx context.Context, userID *primitive.ObjectID, from, to time.Time) ([]repository.DailyRevenue, error) {
	match := scopeFilter(userID)
	match["paymentStatus"] = models.PaymentPaid
	match["createdAt"] = bson.M{"$gte": from, "$lte": to}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$createdAt",
				"timezone": "UTC",
			}},
			"revenue": bson.M{"$sum": "$totalAmount"},
			"orders":  bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	days := []repository.DailyRevenue{}
	if err := cursor.All(ctx, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func scopeFilter(userID *primitive.ObjectID) bson.M {
	query := bson.M{"recordState": notDeleted}
	if userID != nil {
		query["userId"] = *userID
	}
	return query
}

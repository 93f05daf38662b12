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

// AddressRepository swaps defaults inside a transaction. The unique partial
// index on userId where isDefault is true rejects any interleaving that
// would leave two defaults behind.
type AddressRepository struct {
	coll *mongo.Collection
	uow  *UnitOfWork
}

func (r *AddressRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Address, error) {
	var address models.Address
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&address)
	return address, translate(err)
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	addresses := []models.Address{}
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *AddressRepository) Insert(ctx context.Context, address *models.Address) error {
	if address.ID.IsZero() {
		address.ID = primitive.NewObjectID()
	}
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		if address.IsDefault {
			if err := r.clearDefault(ctx, address.UserID, address.ID); err != nil {
				return err
			}
		}
		_, err := r.coll.InsertOne(ctx, address)
		return translate(err)
	})
}

func (r *AddressRepository) Update(ctx context.Context, address models.Address) error {
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		if address.IsDefault {
			if err := r.clearDefault(ctx, address.UserID, address.ID); err != nil {
				return err
			}
		}
		res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": address.ID, "userId": address.UserID}, address)
		if err != nil {
			return translate(err)
		}
		if res.MatchedCount == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *AddressRepository) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AddressRepository) SetDefault(ctx context.Context, userID, id primitive.ObjectID) error {
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.clearDefault(ctx, userID, id); err != nil {
			return err
		}
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": id, "userId": userID},
			bson.M{"$set": bson.M{"isDefault": true, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			return translate(err)
		}
		if res.MatchedCount == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *AddressRepository) clearDefault(ctx context.Context, userID, keep primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "isDefault": true, "_id": bson.M{"$ne": keep}},
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": time.Now().UTC()}},
	)
	return err
}

//go:build integration

package mongodb_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/repository"
	"storefront/internal/repository/mongodb"
	"storefront/internal/storetest"
)

// setupMongo starts a single-node replica set so transactions are available.
func setupMongo(ctx context.Context, t *testing.T) *mongo.Database {
	t.Helper()

	container, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	if strings.Contains(uri, "?") {
		uri += "&directConnection=true"
	} else {
		uri = strings.TrimSuffix(uri, "/") + "/?directConnection=true"
	}

	client, err := database.Connect(ctx, uri)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("storefront_it")
	if err := database.EnsureIndexes(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}
	return db
}

type fixture struct {
	db      *mongo.Database
	store   *mongodb.Store
	user    models.User
	address models.Address
}

func newFixture(ctx context.Context, t *testing.T) *fixture {
	t.Helper()
	db := setupMongo(ctx, t)
	f := &fixture{db: db, store: mongodb.NewStore(db)}

	now := time.Now().UTC()
	f.user = models.User{ID: primitive.NewObjectID(), Name: "Ada", Email: "ada@example.com", Role: models.RoleUser, IsActive: true, CreatedAt: now}
	_, err := db.Collection(mongodb.CollectionUsers).InsertOne(ctx, f.user)
	require.NoError(t, err)

	f.address = models.Address{
		UserID: f.user.ID, FullName: "Ada", Phone: "555", Line1: "1 Road", City: "Pune",
		State: "MH", PostalCode: "411001", Country: "India", Type: models.AddressBoth,
		IsDefault: true, CreatedAt: now,
	}
	require.NoError(t, f.store.Addresses().Insert(ctx, &f.address))
	return f
}

func (f *fixture) putItem(ctx context.Context, t *testing.T, item models.Item) models.Item {
	t.Helper()
	item.CreatedAt = time.Now().UTC()
	_, err := f.db.Collection(mongodb.CollectionItems).InsertOne(ctx, item)
	require.NoError(t, err)
	return item
}

func (f *fixture) stock(ctx context.Context, t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	item, err := f.store.Items().FindByID(ctx, id)
	require.NoError(t, err)
	return item.Sizes[0].Colors[0].Stock
}

func (f *fixture) service(t *testing.T) *orders.Service {
	t.Helper()
	svc, err := orders.NewService(orders.Deps{
		Orders:     f.store.Orders(),
		Items:      f.store.Items(),
		Carts:      f.store.Carts(),
		Addresses:  f.store.Addresses(),
		Users:      f.store.Users(),
		UnitOfWork: f.store.UnitOfWork(),
		Events:     events.NopPublisher{},
	})
	require.NoError(t, err)
	return svc
}

func TestCheckoutAndCancelOnReplicaSet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	f := newFixture(ctx, t)
	svc := f.service(t)

	tee := f.putItem(ctx, t, storetest.NewItem("Tee", 100, 80, "M", "Red", 5))
	hat := f.putItem(ctx, t, storetest.NewItem("Cap", 20, 0, "One", "Black", 1))
	cart := models.Cart{
		UserID:   f.user.ID,
		IsActive: true,
		Items: []models.CartEntry{
			storetest.EntryFor(tee, "M", "Red", 2),
			storetest.EntryFor(hat, "One", "Black", 1),
		},
	}
	require.NoError(t, f.store.Carts().Insert(ctx, &cart))

	view, err := svc.Create(ctx, orders.CreateInput{
		UserID:            f.user.ID,
		ShippingAddressID: f.address.ID,
		BillingAddressID:  f.address.ID,
		PaymentMethod:     models.PaymentCashOnDelivery,
		Tax:               10,
		ShippingCharges:   20,
		Discount:          5,
	})
	require.NoError(t, err)
	assert.Equal(t, 180.0, view.Order.Subtotal)
	assert.Equal(t, 205.0, view.Order.TotalAmount)
	assert.Equal(t, 3, f.stock(ctx, t, tee.ID))
	assert.Equal(t, 0, f.stock(ctx, t, hat.ID))

	stored, err := f.store.Carts().FindActive(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)

	_, err = svc.Cancel(ctx, view.Order.ID, f.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(ctx, t, tee.ID))
	assert.Equal(t, 1, f.stock(ctx, t, hat.ID))
}

func TestFailedDecrementRollsBackTransaction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	f := newFixture(ctx, t)

	first := f.putItem(ctx, t, storetest.NewItem("First", 10, 0, "M", "Red", 5))
	second := f.putItem(ctx, t, storetest.NewItem("Second", 10, 0, "M", "Red", 1))

	err := f.store.UnitOfWork().RunInTx(ctx, func(ctx context.Context) error {
		if err := f.store.Items().AdjustStock(ctx, first.ID, "M", "Red", -2); err != nil {
			return err
		}
		return f.store.Items().AdjustStock(ctx, second.ID, "M", "Red", -2)
	})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(ctx, t, first.ID))
	assert.Equal(t, 1, f.stock(ctx, t, second.ID))

	err = f.store.Items().AdjustStock(ctx, first.ID, "XL", "Red", -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSingleDefaultAddressPerUser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	f := newFixture(ctx, t)

	second := models.Address{
		ID: primitive.NewObjectID(), UserID: f.user.ID, FullName: "Ada", Phone: "555", Line1: "2 Road",
		City: "Pune", State: "MH", PostalCode: "411002", Country: "India", Type: models.AddressShipping,
		IsDefault: true, CreatedAt: time.Now().UTC(),
	}

	// A raw insert bypasses the swap and must be stopped by the partial index.
	_, err := f.db.Collection(mongodb.CollectionAddresses).InsertOne(ctx, second)
	require.True(t, mongo.IsDuplicateKeyError(err), "expected duplicate key, got %v", err)

	second.IsDefault = false
	require.NoError(t, f.store.Addresses().Insert(ctx, &second))
	require.NoError(t, f.store.Addresses().SetDefault(ctx, f.user.ID, second.ID))

	count, err := f.db.Collection(mongodb.CollectionAddresses).CountDocuments(ctx, bson.M{"userId": f.user.ID, "isDefault": true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	list, err := f.store.Addresses().ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	for _, address := range list {
		assert.Equal(t, address.ID == second.ID, address.IsDefault)
	}

	err = f.store.Addresses().SetDefault(ctx, primitive.NewObjectID(), second.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

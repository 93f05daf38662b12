package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/storetest"
)

func setup(t *testing.T) (*storetest.Store, *Service, models.User) {
	t.Helper()
	store := storetest.New()
	user := store.AddUser("Cart Owner", models.RoleUser)
	return store, NewService(store.Carts(), store.Items(), nil), user
}

func requireCode(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, kind, appErr.Kind)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestGetCreatesCartLazily(t *testing.T) {
	store, svc, user := setup(t)

	view, err := svc.Get(t.Context(), user.ID)
	require.NoError(t, err)
	assert.True(t, view.Cart.IsActive)
	assert.Empty(t, view.Cart.Items)

	again, err := svc.Get(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Cart.ID, again.Cart.ID)

	_, ok := store.CartOf(user.ID)
	assert.True(t, ok)
}

func TestAddItemSnapshotsPriceAndMerges(t *testing.T) {
	store, svc, user := setup(t)
	item := store.PutItem(storetest.NewItem("Shirt", 100, 80, "M", "Red", 50))

	_, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 2, Size: "m", Color: "red"})
	require.NoError(t, err)
	view, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 3, Size: "M", Color: "Red", Note: "gift"})
	require.NoError(t, err)

	require.Len(t, view.Cart.Items, 1)
	entry := view.Cart.Items[0]
	assert.Equal(t, 5, entry.Quantity)
	assert.Equal(t, "M", entry.Size)
	assert.Equal(t, "Red", entry.Color.Name)
	assert.Equal(t, 100.0, entry.Price)
	assert.Equal(t, 80.0, entry.DiscountPrice)
	assert.Equal(t, "gift", entry.Note)
	assert.Equal(t, Summary{Lines: 1, ItemCount: 5, Subtotal: 400, Savings: 100}, view.Summary)

	// Later price changes do not touch the snapshot.
	item.Price = 120
	store.PutItem(item)
	again, err := svc.Get(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Cart.Items[0].Price)
}

func TestAddItemCapsMergedQuantity(t *testing.T) {
	store, svc, user := setup(t)
	item := store.PutItem(storetest.NewItem("Shirt", 10, 0, "M", "Red", 500))

	_, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 90, Size: "M", Color: "Red"})
	require.NoError(t, err)
	view, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 20, Size: "M", Color: "Red"})
	require.NoError(t, err)
	assert.Equal(t, models.MaxCartQuantity, view.Cart.Items[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	store, svc, user := setup(t)
	item := store.PutItem(storetest.NewItem("Shirt", 10, 0, "M", "Red", 3))

	_, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 0, Size: "M", Color: "Red"})
	requireCode(t, err, apperr.KindValidation, apperr.CodeValidation)

	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 100, Size: "M", Color: "Red"})
	requireCode(t, err, apperr.KindValidation, apperr.CodeValidation)

	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: primitive.NewObjectID(), Quantity: 1, Size: "M", Color: "Red"})
	requireCode(t, err, apperr.KindNotFound, apperr.CodeNotFound)

	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 1, Size: "XL", Color: "Red"})
	requireCode(t, err, apperr.KindAvailability, apperr.CodeItemUnavailable)

	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 1, Size: "M", Color: "Gold"})
	requireCode(t, err, apperr.KindAvailability, apperr.CodeItemUnavailable)

	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 4, Size: "M", Color: "Red"})
	appErr := requireCode(t, err, apperr.KindAvailability, apperr.CodeItemUnavailable)
	assert.Equal(t, 3, appErr.Details["available"])

	item.IsActive = false
	store.PutItem(item)
	_, err = svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 1, Size: "M", Color: "Red"})
	requireCode(t, err, apperr.KindAvailability, apperr.CodeItemUnavailable)
}

func TestUpdateItem(t *testing.T) {
	store, svc, user := setup(t)
	item := store.PutItem(storetest.NewItem("Shirt", 10, 0, "M", "Red", 5))
	view, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: item.ID, Quantity: 1, Size: "M", Color: "Red"})
	require.NoError(t, err)
	entryID := view.Cart.Items[0].ID

	qty := 4
	note := " leave at door "
	view, err = svc.UpdateItem(t.Context(), user.ID, entryID, UpdateInput{Quantity: &qty, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, 4, view.Cart.Items[0].Quantity)
	assert.Equal(t, "leave at door", view.Cart.Items[0].Note)

	tooMany := 6
	_, err = svc.UpdateItem(t.Context(), user.ID, entryID, UpdateInput{Quantity: &tooMany})
	requireCode(t, err, apperr.KindAvailability, apperr.CodeItemUnavailable)

	_, err = svc.UpdateItem(t.Context(), user.ID, primitive.NewObjectID(), UpdateInput{Quantity: &qty})
	requireCode(t, err, apperr.KindNotFound, apperr.CodeNotFound)

	_, err = svc.UpdateItem(t.Context(), user.ID, entryID, UpdateInput{})
	requireCode(t, err, apperr.KindValidation, apperr.CodeValidation)
}

func TestRemoveAndClear(t *testing.T) {
	store, svc, user := setup(t)
	a := store.PutItem(storetest.NewItem("A", 10, 0, "M", "Red", 5))
	b := store.PutItem(storetest.NewItem("B", 10, 0, "M", "Red", 5))
	_, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: a.ID, Quantity: 1, Size: "M", Color: "Red"})
	require.NoError(t, err)
	view, err := svc.AddItem(t.Context(), user.ID, AddInput{ItemID: b.ID, Quantity: 1, Size: "M", Color: "Red"})
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 2)

	view, err = svc.RemoveItem(t.Context(), user.ID, view.Cart.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, b.ID, view.Cart.Items[0].ItemID)

	_, err = svc.RemoveItem(t.Context(), user.ID, primitive.NewObjectID())
	requireCode(t, err, apperr.KindNotFound, apperr.CodeNotFound)

	view, err = svc.Clear(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
	stored, _ := store.CartOf(user.ID)
	assert.Empty(t, stored.Items)
	assert.True(t, stored.IsActive)
}

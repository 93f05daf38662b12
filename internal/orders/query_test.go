package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/storetest"
)

func TestGetAuthorization(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))
	order := f.placed(item, 1, models.OrderPending)

	view, err := f.svc.Get(t.Context(), order.ID, f.userActor())
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, view.Order.OrderNumber)
	require.NotNil(t, view.User)
	assert.Equal(t, f.user.Email, view.User.Email)

	_, err = f.svc.Get(t.Context(), order.ID, f.adminActor())
	require.NoError(t, err)

	_, err = f.svc.Get(t.Context(), order.ID, Actor{UserID: f.other.ID, Role: models.RoleUser})
	requireCode(t, err, apperr.KindAuthorization, apperr.CodeForbidden)

	_, err = f.svc.Get(t.Context(), primitive.NewObjectID(), f.adminActor())
	requireCode(t, err, apperr.KindNotFound, apperr.CodeOrderNotFound)
}

func TestGetFallsBackToLineSnapshot(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Retired", 50, 0, "M", "Red", 10))
	order := f.placed(item, 1, models.OrderDelivered)
	f.store.RemoveItem(item.ID)

	view, err := f.svc.Get(t.Context(), order.ID, f.userActor())
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Retired", view.Items[0].Name)
}

func TestOrderTimeline(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))
	order := f.placed(item, 1, models.OrderPending)

	_, err := f.svc.UpdateStatus(t.Context(), order.ID, models.OrderConfirmed, "", f.adminActor())
	require.NoError(t, err)

	timeline, err := f.svc.OrderTimeline(t.Context(), order.ID, f.userActor())
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, models.OrderPending, timeline[0].Status)
	assert.Equal(t, order.CreatedAt, timeline[0].At)
	assert.Equal(t, models.OrderConfirmed, timeline[1].Status)

	_, err = f.svc.OrderTimeline(t.Context(), order.ID, Actor{UserID: f.other.ID})
	requireCode(t, err, apperr.KindAuthorization, apperr.CodeForbidden)
}

func TestListScopesToViewer(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))
	older := f.placed(item, 1, models.OrderPending)
	newer := f.placed(item, 1, models.OrderDelivered)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	f.store.PutOrder(newer)
	foreign := f.placed(item, 1, models.OrderPending)
	foreign.UserID = f.other.ID
	f.store.PutOrder(foreign)

	own, err := f.svc.List(t.Context(), ListQuery{Viewer: f.userActor()})
	require.NoError(t, err)
	require.Len(t, own.Orders, 2)
	assert.Equal(t, int64(2), own.Total)
	assert.Equal(t, newer.ID, own.Orders[0].ID)
	assert.Equal(t, defaultPageLimit, own.Limit)

	// A user cannot widen the scope to someone else.
	otherID := f.other.ID
	own, err = f.svc.List(t.Context(), ListQuery{Viewer: f.userActor(), UserID: &otherID})
	require.NoError(t, err)
	assert.Len(t, own.Orders, 2)

	all, err := f.svc.List(t.Context(), ListQuery{Viewer: f.adminActor()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	scoped, err := f.svc.List(t.Context(), ListQuery{Viewer: f.adminActor(), UserID: &otherID})
	require.NoError(t, err)
	require.Len(t, scoped.Orders, 1)
	assert.Equal(t, foreign.ID, scoped.Orders[0].ID)

	pending, err := f.svc.List(t.Context(), ListQuery{Viewer: f.adminActor(), Status: models.OrderPending, Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending.Total)
	assert.Len(t, pending.Orders, 1)

	_, err = f.svc.List(t.Context(), ListQuery{Viewer: f.adminActor(), Status: "lost"})
	requireCode(t, err, apperr.KindValidation, apperr.CodeValidation)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))

	put := func(userID primitive.ObjectID, status models.OrderStatus, payment models.PaymentStatus, total float64, createdAt time.Time) {
		order := f.placed(item, 1, status)
		order.UserID = userID
		order.PaymentStatus = payment
		order.TotalAmount = total
		order.CreatedAt = createdAt
		f.store.PutOrder(order)
	}
	day1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 5, 2, 23, 0, 0, 0, time.UTC)
	put(f.user.ID, models.OrderDelivered, models.PaymentPaid, 100.10, day1)
	put(f.user.ID, models.OrderDelivered, models.PaymentPaid, 50.20, day1.Add(2*time.Hour))
	put(f.user.ID, models.OrderPending, models.PaymentPending, 30, day2)
	put(f.other.ID, models.OrderShipped, models.PaymentPaid, 200, day2)
	put(f.other.ID, models.OrderDelivered, models.PaymentPaid, 999, f.now.Add(-90*24*time.Hour))

	all, err := f.svc.Stats(t.Context(), StatsQuery{Viewer: f.adminActor()})
	require.NoError(t, err)
	assert.Equal(t, 5, all.TotalOrders)
	assert.Equal(t, 1379.3, all.TotalAmount)
	assert.Equal(t, f.now, all.To)
	assert.Equal(t, f.now.Add(-30*24*time.Hour), all.From)
	require.Len(t, all.Revenue, 2)
	assert.Equal(t, repository.DailyRevenue{Day: "2026-05-01", Revenue: 150.3, Orders: 2}, roundRevenue(all.Revenue[0]))
	assert.Equal(t, repository.DailyRevenue{Day: "2026-05-02", Revenue: 200, Orders: 1}, all.Revenue[1])

	own, err := f.svc.Stats(t.Context(), StatsQuery{Viewer: f.userActor()})
	require.NoError(t, err)
	assert.Equal(t, 3, own.TotalOrders)
	require.Len(t, own.Revenue, 1)
	assert.Equal(t, "2026-05-01", own.Revenue[0].Day)

	byStatus := map[models.OrderStatus]int{}
	for _, sc := range own.ByStatus {
		byStatus[sc.Status] = sc.Count
	}
	assert.Equal(t, map[models.OrderStatus]int{models.OrderDelivered: 2, models.OrderPending: 1}, byStatus)

	from := day2
	narrow, err := f.svc.Stats(t.Context(), StatsQuery{Viewer: f.adminActor(), From: &from})
	require.NoError(t, err)
	require.Len(t, narrow.Revenue, 1)
	assert.Equal(t, "2026-05-02", narrow.Revenue[0].Day)

	to := day1.Add(-time.Hour)
	_, err = f.svc.Stats(t.Context(), StatsQuery{Viewer: f.adminActor(), From: &from, To: &to})
	requireCode(t, err, apperr.KindValidation, apperr.CodeValidation)
}

func roundRevenue(dr repository.DailyRevenue) repository.DailyRevenue {
	dr.Revenue = float64(int(dr.Revenue*100+0.5)) / 100
	return dr
}

func TestReorderAddsAvailableLines(t *testing.T) {
	f := newFixture(t)
	kept := f.store.PutItem(storetest.NewItem("Kept", 50, 45, "M", "Red", 10))
	short := f.store.PutItem(storetest.NewItem("Short", 20, 0, "S", "Blue", 1))
	order := f.placed(kept, 2, models.OrderDelivered)
	shortLine := order.Items[0]
	shortLine.ItemID = short.ID
	shortLine.Name = "Short"
	shortLine.Size = "S"
	shortLine.Color = models.SelectedColor{Name: "Blue"}
	shortLine.Quantity = 3
	order.Items = append(order.Items, shortLine)
	f.store.PutOrder(order)

	existing := storetest.EntryFor(kept, "M", "Red", 98)
	f.store.PutCart(f.user.ID, existing)

	result, err := f.svc.Reorder(t.Context(), order.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AddedToCart)
	require.Len(t, result.UnavailableItems, 1)
	assert.Equal(t, short.ID, result.UnavailableItems[0].ItemID)
	assert.Equal(t, 1, result.UnavailableItems[0].Available)

	cart, _ := f.store.CartOf(f.user.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, models.MaxCartQuantity, cart.Items[0].Quantity)
	assert.Equal(t, 10, f.store.Stock(kept.ID, "M", "Red"))
}

func TestReorderCreatesCartAtCurrentPrices(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))
	order := f.placed(item, 2, models.OrderCancelled)
	item.Price = 60
	item.DiscountPrice = 55
	f.store.PutItem(item)

	result, err := f.svc.Reorder(t.Context(), order.ID, f.user.ID)
	require.NoError(t, err)
	require.Len(t, result.Cart.Items, 1)
	assert.Equal(t, 60.0, result.Cart.Items[0].Price)
	assert.Equal(t, 55.0, result.Cart.Items[0].DiscountPrice)
	assert.Empty(t, result.UnavailableItems)
}

func TestReorderWithDeletedItemFails(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Gone", 50, 0, "M", "Red", 10))
	order := f.placed(item, 1, models.OrderDelivered)
	f.store.RemoveItem(item.ID)

	result, err := f.svc.Reorder(t.Context(), order.ID, f.user.ID)
	appErr := requireCode(t, err, apperr.KindAvailability, apperr.CodeNoItemsAvailable)
	assert.Zero(t, result.AddedToCart)
	require.Len(t, result.UnavailableItems, 1)
	assert.Equal(t, "Gone", result.UnavailableItems[0].Name)
	assert.Equal(t, "item is no longer available", result.UnavailableItems[0].Reason)
	assert.Len(t, appErr.Details["unavailableItems"], 1)

	_, ok := f.store.CartOf(f.user.ID)
	assert.False(t, ok)
}

func TestReorderRequiresOwner(t *testing.T) {
	f := newFixture(t)
	item := f.store.PutItem(storetest.NewItem("Shirt", 50, 0, "M", "Red", 10))
	order := f.placed(item, 1, models.OrderDelivered)

	_, err := f.svc.Reorder(t.Context(), order.ID, f.other.ID)
	requireCode(t, err, apperr.KindAuthorization, apperr.CodeForbidden)
}

package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/storetest"
)

type fixture struct {
	store    *storetest.Store
	svc      *Service
	events   *events.Recorder
	now      time.Time
	user     models.User
	other    models.User
	admin    models.User
	shipping models.Address
	billing  models.Address
	seq      int
}

func newFixture(t *testing.T, configure ...func(*Deps)) *fixture {
	t.Helper()

	f := &fixture{
		store:  storetest.New(),
		events: &events.Recorder{},
		now:    time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
	}
	f.user = f.store.AddUser("Ada Buyer", models.RoleUser)
	f.other = f.store.AddUser("Other Buyer", models.RoleUser)
	f.admin = f.store.AddUser("Shop Admin", models.RoleAdmin)
	f.shipping = f.store.AddAddress(f.user.ID, true)
	f.billing = f.store.AddAddress(f.user.ID, false)

	deps := Deps{
		Orders:     f.store.Orders(),
		Items:      f.store.Items(),
		Carts:      f.store.Carts(),
		Addresses:  f.store.Addresses(),
		Users:      f.store.Users(),
		UnitOfWork: f.store,
		Events:     f.events,
		Clock:      func() time.Time { return f.now },
		Random: func(n int) int {
			f.seq++
			return f.seq % n
		},
	}
	for _, fn := range configure {
		fn(&deps)
	}

	svc, err := NewService(deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) createInput() CreateInput {
	return CreateInput{
		UserID:            f.user.ID,
		ShippingAddressID: f.shipping.ID,
		BillingAddressID:  f.billing.ID,
		PaymentMethod:     models.PaymentCashOnDelivery,
	}
}

func (f *fixture) userActor() Actor {
	return Actor{UserID: f.user.ID, Role: models.RoleUser}
}

func (f *fixture) adminActor() Actor {
	return Actor{UserID: f.admin.ID, Role: models.RoleAdmin}
}

// placed stores an order for f.user with one line of qty units of item.
func (f *fixture) placed(item models.Item, qty int, status models.OrderStatus) models.Order {
	size := item.Sizes[0]
	color := size.Colors[0]
	line := models.OrderItem{
		ItemID:        item.ID,
		Name:          item.Name,
		Quantity:      qty,
		Size:          size.Size,
		Color:         models.SelectedColor{Name: color.Name},
		Price:         item.Price,
		DiscountPrice: item.DiscountPrice,
		FinalPrice:    models.EffectivePrice(item.Price, item.DiscountPrice),
	}
	totals := ComputeTotals([]models.OrderItem{line}, 0, 0, 0)
	return f.store.PutOrder(models.Order{
		ID:                primitive.NewObjectID(),
		OrderNumber:       "ORD" + primitive.NewObjectID().Hex()[12:],
		UserID:            f.user.ID,
		Items:             []models.OrderItem{line},
		ShippingAddressID: f.shipping.ID,
		BillingAddressID:  f.billing.ID,
		Status:            status,
		PaymentStatus:     models.PaymentPending,
		PaymentMethod:     models.PaymentCard,
		Subtotal:          totals.Subtotal,
		TotalAmount:       totals.TotalAmount,
		RecordState:       models.RecordActive,
		CreatedAt:         f.now.Add(-48 * time.Hour),
		UpdatedAt:         f.now.Add(-48 * time.Hour),
	})
}

func requireCode(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

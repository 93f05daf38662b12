// Package orders implements the order lifecycle: checkout from the cart,
// status transitions, cancellation and return with stock restoration,
// reorder and reporting.
package orders

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repository"
)

const (
	DefaultReturnWindow    = 7 * 24 * time.Hour
	estimatedDeliveryAfter = 7 * 24 * time.Hour
	maxOrderNumberAttempts = 5
	defaultPublishTimeout  = 2 * time.Second
)

// Deps bundles collaborators required to construct the service.
type Deps struct {
	Orders     repository.OrderRepository
	Items      repository.ItemRepository
	Carts      repository.CartRepository
	Addresses  repository.AddressRepository
	Users      repository.UserRepository
	UnitOfWork repository.UnitOfWork
	Events     events.Publisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
	// Random returns a value in [0, n).
	Random func(n int) int

	ReturnWindow    time.Duration
	RestockOnReturn bool
	// PublishTimeout bounds each event publish. It runs detached from the
	// request so a slow broker cannot fail a committed change.
	PublishTimeout time.Duration
}

type Service struct {
	orders    repository.OrderRepository
	items     repository.ItemRepository
	carts     repository.CartRepository
	addresses repository.AddressRepository
	users     repository.UserRepository
	uow       repository.UnitOfWork
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	clock     func() time.Time
	random    func(n int) int

	returnWindow    time.Duration
	restockOnReturn bool
	publishTimeout  time.Duration
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("orders: order repository is required")
	case deps.Items == nil:
		return nil, errors.New("orders: item repository is required")
	case deps.Carts == nil:
		return nil, errors.New("orders: cart repository is required")
	case deps.Addresses == nil:
		return nil, errors.New("orders: address repository is required")
	case deps.Users == nil:
		return nil, errors.New("orders: user repository is required")
	case deps.UnitOfWork == nil:
		return nil, errors.New("orders: unit of work is required")
	}

	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	random := deps.Random
	if random == nil {
		random = rand.IntN
	}
	window := deps.ReturnWindow
	if window <= 0 {
		window = DefaultReturnWindow
	}
	publishTimeout := deps.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Service{
		orders:          deps.Orders,
		items:           deps.Items,
		carts:           deps.Carts,
		addresses:       deps.Addresses,
		users:           deps.Users,
		uow:             deps.UnitOfWork,
		events:          publisher,
		metrics:         deps.Metrics,
		log:             logging.OrNop(deps.Logger),
		clock:           func() time.Time { return clock().UTC() },
		random:          random,
		returnWindow:    window,
		restockOnReturn: deps.RestockOnReturn,
		publishTimeout:  publishTimeout,
	}, nil
}

// Actor identifies who is calling.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Label is the value recorded in status history.
func (a Actor) Label() string {
	if a.UserID.IsZero() {
		return "system"
	}
	role := a.Role
	if role == "" {
		role = models.RoleUser
	}
	return role + ":" + a.UserID.Hex()
}

func (s *Service) load(ctx context.Context, orderID primitive.ObjectID) (models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Order{}, apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
	}
	if err != nil {
		return models.Order{}, apperr.Internal(err, "failed to load order")
	}
	return order, nil
}

// loadOwned returns the order when userID owns it.
func (s *Service) loadOwned(ctx context.Context, orderID, userID primitive.ObjectID) (models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, apperr.Forbidden("order belongs to another user")
	}
	return order, nil
}

func (s *Service) save(ctx context.Context, order models.Order) error {
	err := s.orders.Update(ctx, order)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
	}
	if err != nil {
		return apperr.Internal(err, "failed to update order")
	}
	return nil
}

// publish runs after commit; broker failures never fail the request.
func (s *Service) publish(ctx context.Context, eventType string, order models.Order, previous models.OrderStatus) {
	event := events.NewOrderEvent(eventType, order, previous, s.clock())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("order event not published",
			zap.String("type", eventType),
			zap.String("orderNumber", order.OrderNumber),
			zap.Error(err),
		)
	}
}

// wrapTx keeps classified errors and wraps the rest as internal.
func wrapTx(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err, message)
}

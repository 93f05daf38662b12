// Package repository declares the persistence contracts used by the order
// engine, the cart service and the address handlers.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

var (
	ErrNotFound          = errors.New("repository: not found")
	ErrDuplicateKey      = errors.New("repository: duplicate key")
	ErrInsufficientStock = errors.New("repository: insufficient stock")
)

// UnitOfWork groups repository calls into one transaction. Calls made with
// the context handed to fn join that transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderFilter struct {
	UserID *primitive.ObjectID
	Status models.OrderStatus
	Page   int
	Limit  int
}

type StatusCount struct {
	Status models.OrderStatus `json:"status" bson:"_id"`
	Count  int                `json:"count" bson:"count"`
	Total  float64            `json:"totalAmount" bson:"total"`
}

// DailyRevenue is keyed by UTC calendar day in YYYY-MM-DD form.
type DailyRevenue struct {
	Day     string  `json:"day" bson:"_id"`
	Revenue float64 `json:"revenue" bson:"revenue"`
	Orders  int     `json:"orders" bson:"orders"`
}

// OrderRepository never returns soft-deleted orders.
type OrderRepository interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	Update(ctx context.Context, order models.Order) error
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	CountByStatus(ctx context.Context, userID *primitive.ObjectID) ([]StatusCount, error)
	RevenueByDay(ctx context.Context, userID *primitive.ObjectID, from, to time.Time) ([]DailyRevenue, error)
}

type ItemRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Item, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Item, error)
	// AdjustStock adds delta to one color's stock. A negative delta only
	// applies when the stock covers it, otherwise ErrInsufficientStock.
	AdjustStock(ctx context.Context, itemID primitive.ObjectID, size, color string, delta int) error
	SetStock(ctx context.Context, itemID primitive.ObjectID, size, color string, stock int) error
}

type CartRepository interface {
	FindActive(ctx context.Context, userID primitive.ObjectID) (models.Cart, error)
	Insert(ctx context.Context, cart *models.Cart) error
	Save(ctx context.Context, cart models.Cart) error
	Clear(ctx context.Context, userID primitive.ObjectID) error
}

// AddressRepository keeps at most one default address per user. Insert and
// Update of a default address clear the previous default in the same write.
type AddressRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Address, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	Insert(ctx context.Context, address *models.Address) error
	Update(ctx context.Context, address models.Address) error
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
	SetDefault(ctx context.Context, userID, id primitive.ObjectID) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

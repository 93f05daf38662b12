// Package mongodb implements the repository contracts on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/repository"
)

const (
	CollectionUsers         = "users"
	CollectionOrders        = "orders"
	CollectionItems         = "items"
	CollectionCarts         = "carts"
	CollectionAddresses     = "addresses"
	CollectionCategories    = "categories"
	CollectionSubcategories = "subcategories"
	CollectionReviews       = "reviews"
	CollectionBanners       = "banners"
	CollectionRefreshTokens = "refresh_tokens"
)

// Store bundles the repositories that share one database handle.
type Store struct {
	db        *mongo.Database
	uow       *UnitOfWork
	orders    *OrderRepository
	items     *ItemRepository
	carts     *CartRepository
	addresses *AddressRepository
	users     *UserRepository
}

func NewStore(db *mongo.Database) *Store {
	uow := &UnitOfWork{client: db.Client()}
	return &Store{
		db:        db,
		uow:       uow,
		orders:    &OrderRepository{coll: db.Collection(CollectionOrders)},
		items:     &ItemRepository{coll: db.Collection(CollectionItems)},
		carts:     &CartRepository{coll: db.Collection(CollectionCarts)},
		addresses: &AddressRepository{coll: db.Collection(CollectionAddresses), uow: uow},
		users:     &UserRepository{coll: db.Collection(CollectionUsers)},
	}
}

func (s *Store) DB() *mongo.Database { return s.db }
func (s *Store) UnitOfWork() *UnitOfWork { return s.uow }
func (s *Store) Orders() *OrderRepository { return s.orders }
func (s *Store) Items() *ItemRepository { return s.items }
func (s *Store) Carts() *CartRepository { return s.carts }
func (s *Store) Addresses() *AddressRepository { return s.addresses }
func (s *Store) Users() *UserRepository { return s.users }

// UnitOfWork runs callbacks inside a multi-document transaction. A context
// already bound to a session joins it instead of nesting.
type UnitOfWork struct {
	client *mongo.Client
}

func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := u.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicateKey, err)
	default:
		return err
	}
}

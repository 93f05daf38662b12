// Package storetest provides an in-memory implementation of the repository
// contracts for tests. RunInTx snapshots the whole store and restores it when
// the callback fails, so transactional behaviour can be asserted.
package storetest

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type txKey struct{}

type Store struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]models.Order
	items     map[primitive.ObjectID]models.Item
	carts     map[primitive.ObjectID]models.Cart
	addresses map[primitive.ObjectID]models.Address
	users     map[primitive.ObjectID]models.User

	// DuplicateOrderInserts makes the next n order inserts fail with
	// repository.ErrDuplicateKey.
	DuplicateOrderInserts int
	// FailStockAdjust, when set, is consulted before every stock adjustment.
	FailStockAdjust func(itemID primitive.ObjectID, size, color string, delta int) error

	Commits   int
	Rollbacks int
}

func New() *Store {
	return &Store{
		orders:    map[primitive.ObjectID]models.Order{},
		items:     map[primitive.ObjectID]models.Item{},
		carts:     map[primitive.ObjectID]models.Cart{},
		addresses: map[primitive.ObjectID]models.Address{},
		users:     map[primitive.ObjectID]models.User{},
	}
}

func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }
func (s *Store) Items() repository.ItemRepository { return itemRepo{s} }
func (s *Store) Carts() repository.CartRepository { return cartRepo{s} }
func (s *Store) Addresses() repository.AddressRepository { return addressRepo{s} }
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type snapshot struct {
	orders    map[primitive.ObjectID]models.Order
	items     map[primitive.ObjectID]models.Item
	carts     map[primitive.ObjectID]models.Cart
	addresses map[primitive.ObjectID]models.Address
	users     map[primitive.ObjectID]models.User
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	snap := snapshot{
		orders:    cloneMap(s.orders, cloneOrder),
		items:     cloneMap(s.items, cloneItem),
		carts:     cloneMap(s.carts, cloneCart),
		addresses: cloneMap(s.addresses, identity[models.Address]),
		users:     cloneMap(s.users, identity[models.User]),
	}
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.orders, s.items, s.carts, s.addresses, s.users = snap.orders, snap.items, snap.carts, snap.addresses, snap.users
		s.Rollbacks++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.Commits++
	s.mu.Unlock()
	return nil
}

// Seed helpers.

func (s *Store) AddUser(name, role string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	s.users[user.ID] = user
	return user
}

func (s *Store) AddAddress(userID primitive.ObjectID, isDefault bool) models.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	address := models.Address{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		FullName:   "Test Person",
		Phone:      "5550100",
		Line1:      "1 Test Street",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
		Type:       models.AddressBoth,
		IsDefault:  isDefault,
		CreatedAt:  time.Now().UTC(),
	}
	s.addresses[address.ID] = address
	return address
}

func (s *Store) PutItem(item models.Item) models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	s.items[item.ID] = cloneItem(item)
	return item
}

// NewItem builds an active item with one size and one color.
func NewItem(name string, price, discountPrice float64, size, color string, stock int) models.Item {
	return models.Item{
		ID:            primitive.NewObjectID(),
		Name:          name,
		Price:         price,
		DiscountPrice: discountPrice,
		IsActive:      true,
		Sizes: []models.SizeVariant{{
			Size:   size,
			Colors: []models.ColorVariant{{Name: color, Stock: stock, SKU: name + "-" + size + "-" + color}},
		}},
	}
}

func (s *Store) RemoveItem(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *Store) PutCart(userID primitive.ObjectID, entries ...models.CartEntry) models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := models.Cart{ID: primitive.NewObjectID(), UserID: userID, IsActive: true, Items: []models.CartEntry{}}
	for _, e := range entries {
		if e.ID.IsZero() {
			e.ID = primitive.NewObjectID()
		}
		cart.Items = append(cart.Items, e)
	}
	s.carts[userID] = cloneCart(cart)
	return cart
}

// EntryFor snapshots an item variant into a cart entry.
func EntryFor(item models.Item, size, color string, qty int) models.CartEntry {
	return models.CartEntry{
		ID:            primitive.NewObjectID(),
		ItemID:        item.ID,
		Quantity:      qty,
		Size:          size,
		Color:         models.SelectedColor{Name: color},
		Price:         item.Price,
		DiscountPrice: item.DiscountPrice,
		AddedAt:       time.Now().UTC(),
	}
}

func (s *Store) PutOrder(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.RecordState == "" {
		order.RecordState = models.RecordActive
	}
	s.orders[order.ID] = cloneOrder(order)
	return order
}

// Stock returns the current stock of a variant, or -1 when it does not exist.
func (s *Store) Stock(itemID primitive.ObjectID, size, color string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return -1
	}
	si, ci := variantIndex(item, size, color)
	if si < 0 || ci < 0 {
		return -1
	}
	return item.Sizes[si].Colors[ci].Stock
}

func (s *Store) CartOf(userID primitive.ObjectID) (models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	return cloneCart(cart), ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// RawOrder returns an order regardless of its record state.
func (s *Store) RawOrder(id primitive.ObjectID) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	return cloneOrder(order), ok
}

// Repositories.

type orderRepo struct{ s *Store }

func (r orderRepo) Insert(_ context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.DuplicateOrderInserts > 0 {
		r.s.DuplicateOrderInserts--
		return repository.ErrDuplicateKey
	}
	for _, existing := range r.s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateKey
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	r.s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r orderRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok || order.Deleted() {
		return models.Order{}, repository.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r orderRepo) Update(_ context.Context, order models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.orders[order.ID]
	if !ok || existing.Deleted() {
		return repository.ErrNotFound
	}
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r orderRepo) List(_ context.Context, filter repository.OrderFilter) ([]models.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := []models.Order{}
	for _, order := range r.s.orders {
		if order.Deleted() || !inScope(order, filter.UserID) {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if filter.Limit > 0 {
		start := (max(filter.Page, 1) - 1) * filter.Limit
		if start >= len(matched) {
			return []models.Order{}, total, nil
		}
		matched = matched[start:min(start+filter.Limit, len(matched))]
	}
	return matched, total, nil
}

func (r orderRepo) CountByStatus(_ context.Context, userID *primitive.ObjectID) ([]repository.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byStatus := map[models.OrderStatus]*repository.StatusCount{}
	for _, order := range r.s.orders {
		if order.Deleted() || !inScope(order, userID) {
			continue
		}
		sc, ok := byStatus[order.Status]
		if !ok {
			sc = &repository.StatusCount{Status: order.Status}
			byStatus[order.Status] = sc
		}
		sc.Count++
		sc.Total += order.TotalAmount
	}
	out := make([]repository.StatusCount, 0, len(byStatus))
	for _, sc := range byStatus {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (r orderRepo) RevenueByDay(_ context.Context, userID *primitive.ObjectID, from, to time.Time) ([]repository.DailyRevenue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byDay := map[string]*repository.DailyRevenue{}
	for _, order := range r.s.orders {
		if order.Deleted() || !inScope(order, userID) || order.PaymentStatus != models.PaymentPaid {
			continue
		}
		if order.CreatedAt.Before(from) || order.CreatedAt.After(to) {
			continue
		}
		day := order.CreatedAt.UTC().Format(time.DateOnly)
		dr, ok := byDay[day]
		if !ok {
			dr = &repository.DailyRevenue{Day: day}
			byDay[day] = dr
		}
		dr.Revenue += order.TotalAmount
		dr.Orders++
	}
	out := make([]repository.DailyRevenue, 0, len(byDay))
	for _, dr := range byDay {
		out = append(out, *dr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func inScope(order models.Order, userID *primitive.ObjectID) bool {
	return userID == nil || order.UserID == *userID
}

type itemRepo struct{ s *Store }

func (r itemRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return models.Item{}, repository.ErrNotFound
	}
	return cloneItem(item), nil
}

func (r itemRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[primitive.ObjectID]models.Item, len(ids))
	for _, id := range ids {
		if item, ok := r.s.items[id]; ok {
			out[id] = cloneItem(item)
		}
	}
	return out, nil
}

func (r itemRepo) AdjustStock(_ context.Context, itemID primitive.ObjectID, size, color string, delta int) error {
	if hook := r.s.FailStockAdjust; hook != nil {
		if err := hook(itemID, size, color, delta); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	si, ci := variantIndex(item, size, color)
	if si < 0 || ci < 0 {
		return repository.ErrNotFound
	}
	current := item.Sizes[si].Colors[ci].Stock
	if current+delta < 0 {
		return repository.ErrInsufficientStock
	}
	item.Sizes[si].Colors[ci].Stock = current + delta
	r.s.items[itemID] = item
	return nil
}

func (r itemRepo) SetStock(_ context.Context, itemID primitive.ObjectID, size, color string, stock int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	si, ci := variantIndex(item, size, color)
	if si < 0 || ci < 0 {
		return repository.ErrNotFound
	}
	item.Sizes[si].Colors[ci].Stock = stock
	r.s.items[itemID] = item
	return nil
}

func variantIndex(item models.Item, size, color string) (int, int) {
	for si, sv := range item.Sizes {
		if sv.Size != size {
			continue
		}
		for ci, cv := range sv.Colors {
			if cv.Name == color {
				return si, ci
			}
		}
	}
	return -1, -1
}

type cartRepo struct{ s *Store }

func (r cartRepo) FindActive(_ context.Context, userID primitive.ObjectID) (models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cart, ok := r.s.carts[userID]
	if !ok || !cart.IsActive {
		return models.Cart{}, repository.ErrNotFound
	}
	return cloneCart(cart), nil
}

func (r cartRepo) Insert(_ context.Context, cart *models.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.carts[cart.UserID]; ok && existing.IsActive {
		return repository.ErrDuplicateKey
	}
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	if cart.Items == nil {
		cart.Items = []models.CartEntry{}
	}
	r.s.carts[cart.UserID] = cloneCart(*cart)
	return nil
}

func (r cartRepo) Save(_ context.Context, cart models.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.carts[cart.UserID]
	if !ok || existing.ID != cart.ID {
		return repository.ErrNotFound
	}
	r.s.carts[cart.UserID] = cloneCart(cart)
	return nil
}

func (r cartRepo) Clear(_ context.Context, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cart, ok := r.s.carts[userID]
	if !ok {
		return nil
	}
	cart.Items = []models.CartEntry{}
	r.s.carts[userID] = cart
	return nil
}

type addressRepo struct{ s *Store }

func (r addressRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	address, ok := r.s.addresses[id]
	if !ok {
		return models.Address{}, repository.ErrNotFound
	}
	return address, nil
}

func (r addressRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Address{}
	for _, address := range r.s.addresses {
		if address.UserID == userID {
			out = append(out, address)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r addressRepo) Insert(_ context.Context, address *models.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if address.ID.IsZero() {
		address.ID = primitive.NewObjectID()
	}
	if address.IsDefault {
		r.clearDefaultLocked(address.UserID, address.ID)
	}
	r.s.addresses[address.ID] = *address
	return nil
}

func (r addressRepo) Update(_ context.Context, address models.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.addresses[address.ID]
	if !ok || existing.UserID != address.UserID {
		return repository.ErrNotFound
	}
	if address.IsDefault {
		r.clearDefaultLocked(address.UserID, address.ID)
	}
	r.s.addresses[address.ID] = address
	return nil
}

func (r addressRepo) Delete(_ context.Context, userID, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.addresses[id]
	if !ok || existing.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.s.addresses, id)
	return nil
}

func (r addressRepo) SetDefault(_ context.Context, userID, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	address, ok := r.s.addresses[id]
	if !ok || address.UserID != userID {
		return repository.ErrNotFound
	}
	r.clearDefaultLocked(userID, id)
	address.IsDefault = true
	r.s.addresses[id] = address
	return nil
}

func (r addressRepo) clearDefaultLocked(userID, keep primitive.ObjectID) {
	for id, address := range r.s.addresses {
		if address.UserID == userID && id != keep && address.IsDefault {
			address.IsDefault = false
			r.s.addresses[id] = address
		}
	}
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (r userRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

// ErrInjected is a convenience failure for hooks.
var ErrInjected = errors.New("storetest: injected failure")

func cloneMap[V any](in map[primitive.ObjectID]V, clone func(V) V) map[primitive.ObjectID]V {
	out := make(map[primitive.ObjectID]V, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func identity[V any](v V) V { return v }

func cloneItem(item models.Item) models.Item {
	sizes := make([]models.SizeVariant, len(item.Sizes))
	for i, sv := range item.Sizes {
		sizes[i] = models.SizeVariant{Size: sv.Size, Colors: slices.Clone(sv.Colors)}
	}
	item.Sizes = sizes
	return item
}

func cloneCart(cart models.Cart) models.Cart {
	cart.Items = slices.Clone(cart.Items)
	if cart.Items == nil {
		cart.Items = []models.CartEntry{}
	}
	return cart
}

func cloneOrder(order models.Order) models.Order {
	order.Items = slices.Clone(order.Items)
	order.StatusHistory = slices.Clone(order.StatusHistory)
	return order
}

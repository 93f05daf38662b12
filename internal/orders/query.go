package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repository"
)

const (
	defaultStatsRange = 30 * 24 * time.Hour
	defaultPageLimit  = 20
	maxPageLimit      = 100
)

// View is an order with its related entities resolved.
type View struct {
	Order           models.Order         `json:"order"`
	User            *models.UserSummary  `json:"user,omitempty"`
	ShippingAddress *models.Address      `json:"shippingAddress,omitempty"`
	BillingAddress  *models.Address      `json:"billingAddress,omitempty"`
	Items           []models.ItemSummary `json:"items"`
	Totals          Totals               `json:"totals"`
	Timeline        []models.StatusEvent `json:"timeline"`
	NextStatuses    []models.OrderStatus `json:"nextStatuses"`
}

// Get returns an order to its owner or to an admin.
func (s *Service) Get(ctx context.Context, orderID primitive.ObjectID, viewer Actor) (View, error) {
	order, err := s.visible(ctx, orderID, viewer)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, order)
}

// OrderTimeline returns the ordered status history of a visible order.
func (s *Service) OrderTimeline(ctx context.Context, orderID primitive.ObjectID, viewer Actor) ([]models.StatusEvent, error) {
	order, err := s.visible(ctx, orderID, viewer)
	if err != nil {
		return nil, err
	}
	return Timeline(order), nil
}

func (s *Service) visible(ctx context.Context, orderID primitive.ObjectID, viewer Actor) (models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !viewer.IsAdmin() && order.UserID != viewer.UserID {
		return models.Order{}, apperr.Forbidden("not allowed to view this order")
	}
	return order, nil
}

func (s *Service) view(ctx context.Context, order models.Order) (View, error) {
	view := View{
		Order:        order,
		Totals:       TotalsOf(order),
		Timeline:     Timeline(order),
		NextStatuses: NextStatuses(order.Status),
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	switch {
	case err == nil:
		summary := user.Summary()
		view.User = &summary
	case !errors.Is(err, repository.ErrNotFound):
		return View{}, apperr.Internal(err, "failed to load order user")
	}

	if view.ShippingAddress, err = s.optionalAddress(ctx, order.ShippingAddressID); err != nil {
		return View{}, err
	}
	if order.BillingAddressID == order.ShippingAddressID {
		view.BillingAddress = view.ShippingAddress
	} else if view.BillingAddress, err = s.optionalAddress(ctx, order.BillingAddressID); err != nil {
		return View{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return View{}, apperr.Internal(err, "failed to load order items")
	}
	view.Items = summaries(order, items)
	return view, nil
}

func (s *Service) optionalAddress(ctx context.Context, id primitive.ObjectID) (*models.Address, error) {
	address, err := s.addresses.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order address")
	}
	return &address, nil
}

// summaries falls back to the line snapshot for items no longer in the catalog.
func summaries(order models.Order, items map[primitive.ObjectID]models.Item) []models.ItemSummary {
	seen := map[primitive.ObjectID]bool{}
	out := make([]models.ItemSummary, 0, len(order.Items))
	for _, line := range order.Items {
		if seen[line.ItemID] {
			continue
		}
		seen[line.ItemID] = true
		if item, ok := items[line.ItemID]; ok {
			out = append(out, item.Summary())
			continue
		}
		out = append(out, models.ItemSummary{ID: line.ItemID, Name: line.Name, Image: line.Image})
	}
	return out
}

type ListQuery struct {
	Viewer Actor
	// UserID narrows an admin listing to one user. Ignored for non-admins.
	UserID *primitive.ObjectID
	Status models.OrderStatus
	Page   int
	Limit  int
}

type ListResult struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// List returns the viewer's orders newest first; admins see every order.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if q.Status != "" && !q.Status.Valid() {
		return ListResult{}, apperr.Validationf("status %q is invalid", q.Status)
	}
	page := max(q.Page, 1)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)

	filter := repository.OrderFilter{Status: q.Status, Page: page, Limit: limit}
	if q.Viewer.IsAdmin() {
		filter.UserID = q.UserID
	} else {
		own := q.Viewer.UserID
		filter.UserID = &own
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return ListResult{}, apperr.Internal(err, "failed to list orders")
	}
	return ListResult{Orders: orders, Total: total, Page: page, Limit: limit}, nil
}

type StatsQuery struct {
	Viewer Actor
	UserID *primitive.ObjectID
	From   *time.Time
	To     *time.Time
}

type Stats struct {
	ByStatus    []repository.StatusCount  `json:"byStatus"`
	TotalOrders int                       `json:"totalOrders"`
	TotalAmount float64                   `json:"totalAmount"`
	Revenue     []repository.DailyRevenue `json:"revenue"`
	From        time.Time                 `json:"from"`
	To          time.Time                 `json:"to"`
}

// Stats aggregates orders by status and paid revenue by UTC day. Users only
// ever see their own figures. The revenue range defaults to the last 30 days.
func (s *Service) Stats(ctx context.Context, q StatsQuery) (Stats, error) {
	to := s.clock()
	if q.To != nil {
		to = q.To.UTC()
	}
	from := to.Add(-defaultStatsRange)
	if q.From != nil {
		from = q.From.UTC()
	}
	if from.After(to) {
		return Stats{}, apperr.Validation("from must not be after to")
	}

	scope := q.UserID
	if !q.Viewer.IsAdmin() {
		own := q.Viewer.UserID
		scope = &own
	}

	byStatus, err := s.orders.CountByStatus(ctx, scope)
	if err != nil {
		return Stats{}, apperr.Internal(err, "failed to aggregate orders")
	}
	revenue, err := s.orders.RevenueByDay(ctx, scope, from, to)
	if err != nil {
		return Stats{}, apperr.Internal(err, "failed to aggregate revenue")
	}

	stats := Stats{ByStatus: byStatus, Revenue: revenue, From: from, To: to}
	total := decimal.Zero
	for _, sc := range byStatus {
		stats.TotalOrders += sc.Count
		total = total.Add(decimal.NewFromFloat(sc.Total))
	}
	stats.TotalAmount = cents(total)
	return stats, nil
}

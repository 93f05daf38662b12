package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repository"
)

const (
	orderNumberPrefix = "ORD"
	orderPlacedNote   = "Order placed"
)

type CreateInput struct {
	UserID            primitive.ObjectID
	ShippingAddressID primitive.ObjectID
	BillingAddressID  primitive.ObjectID
	PaymentMethod     models.PaymentMethod
	Notes             string
	Tax               float64
	ShippingCharges   float64
	Discount          float64
}

func (in CreateInput) validate() error {
	var problems []string
	if in.UserID.IsZero() {
		problems = append(problems, "userId is required")
	}
	if in.ShippingAddressID.IsZero() {
		problems = append(problems, "shippingAddressId is required")
	}
	if in.BillingAddressID.IsZero() {
		problems = append(problems, "billingAddressId is required")
	}
	if !in.PaymentMethod.Valid() {
		problems = append(problems, "paymentMethod is invalid")
	}
	if in.Tax < 0 {
		problems = append(problems, "tax must be zero or greater")
	}
	if in.ShippingCharges < 0 {
		problems = append(problems, "shippingCharges must be zero or greater")
	}
	if in.Discount < 0 {
		problems = append(problems, "discount must be zero or greater")
	}
	if len(problems) > 0 {
		return apperr.Validation(strings.Join(problems, "; ")).WithDetails(map[string]any{"errors": problems})
	}
	return nil
}

// Create turns the user's active cart into a pending order. The insert, the
// per-line stock decrements and the cart clear commit together.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	if err := in.validate(); err != nil {
		return View{}, err
	}

	shipping, billing, err := s.checkoutAddresses(ctx, in)
	if err != nil {
		return View{}, err
	}

	cart, err := s.carts.FindActive(ctx, in.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return View{}, apperr.Internal(err, "failed to load cart")
	}
	if len(cart.Items) == 0 {
		return View{}, apperr.New(apperr.KindValidation, apperr.CodeEmptyCart, "cart is empty")
	}

	lines, items, err := s.snapshotCart(ctx, cart)
	if err != nil {
		return View{}, err
	}

	// A discount larger than the order is kept as a negative total.
	totals := ComputeTotals(lines, in.Tax, in.ShippingCharges, in.Discount)

	now := s.clock()
	order := models.Order{
		UserID:            in.UserID,
		Items:             lines,
		ShippingAddressID: shipping.ID,
		BillingAddressID:  billing.ID,
		Status:            models.OrderPending,
		PaymentStatus:     models.PaymentPending,
		PaymentMethod:     in.PaymentMethod,
		Subtotal:          totals.Subtotal,
		Tax:               totals.Tax,
		ShippingCharges:   totals.ShippingCharges,
		Discount:          totals.Discount,
		TotalAmount:       totals.TotalAmount,
		Notes:             strings.TrimSpace(in.Notes),
		StatusHistory: []models.StatusEvent{{
			Status: models.OrderPending,
			Note:   orderPlacedNote,
			Actor:  Actor{UserID: in.UserID, Role: models.RoleUser}.Label(),
			At:     now,
		}},
		RecordState: models.RecordActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		order.ID = primitive.NewObjectID()
		order.OrderNumber = s.orderNumber(s.clock())

		err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
			return s.place(ctx, order)
		})
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateKey) && attempt < maxOrderNumberAttempts {
			s.log.Info("order number collision, retrying",
				zap.String("orderNumber", order.OrderNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if apperr.KindOf(err) == apperr.KindAvailability {
			s.metrics.StockShortfall()
		}
		return View{}, wrapTx(err, "failed to place order")
	}

	s.metrics.OrderCreated()
	s.log.Info("order placed",
		zap.String("orderNumber", order.OrderNumber),
		zap.String("userId", order.UserID.Hex()),
		zap.Int("lines", len(order.Items)),
		zap.Float64("totalAmount", order.TotalAmount),
	)
	view := View{
		Order:           order,
		ShippingAddress: &shipping,
		BillingAddress:  &billing,
		Items:           summaries(order, items),
		Totals:          totals,
		Timeline:        Timeline(order),
		NextStatuses:    NextStatuses(order.Status),
	}
	if user, err := s.users.FindByID(ctx, order.UserID); err == nil {
		summary := user.Summary()
		view.User = &summary
	}

	s.publish(ctx, events.TypeOrderCreated, order, "")
	return view, nil
}

// place writes the order, reserves stock line by line and empties the cart.
// Any failure aborts the surrounding transaction.
func (s *Service) place(ctx context.Context, order models.Order) error {
	if err := s.orders.Insert(ctx, &order); err != nil {
		return err
	}
	for _, line := range order.Items {
		err := s.items.AdjustStock(ctx, line.ItemID, line.Size, line.Color.Name, -line.Quantity)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrInsufficientStock), errors.Is(err, repository.ErrNotFound):
			return UnavailableItem{
				ItemID:    line.ItemID,
				Name:      line.Name,
				Size:      line.Size,
				Color:     line.Color.Name,
				Requested: line.Quantity,
				Reason:    "insufficient stock",
			}.err()
		default:
			return fmt.Errorf("reserve stock for %s: %w", line.ItemID.Hex(), err)
		}
	}
	return s.carts.Clear(ctx, order.UserID)
}

func (s *Service) checkoutAddresses(ctx context.Context, in CreateInput) (models.Address, models.Address, error) {
	shipping, err := s.ownedAddress(ctx, in.UserID, in.ShippingAddressID, "shipping")
	if err != nil {
		return models.Address{}, models.Address{}, err
	}
	if in.BillingAddressID == in.ShippingAddressID {
		return shipping, shipping, nil
	}
	billing, err := s.ownedAddress(ctx, in.UserID, in.BillingAddressID, "billing")
	if err != nil {
		return models.Address{}, models.Address{}, err
	}
	return shipping, billing, nil
}

func (s *Service) ownedAddress(ctx context.Context, userID, addressID primitive.ObjectID, role string) (models.Address, error) {
	address, err := s.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Address{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidAddress, role+" address not found").
			WithDetails(map[string]any{"addressId": addressID.Hex()})
	}
	if err != nil {
		return models.Address{}, apperr.Internal(err, "failed to load address")
	}
	if address.UserID != userID {
		return models.Address{}, apperr.New(apperr.KindAuthorization, apperr.CodeAddressOwnership, role+" address belongs to another user").
			WithDetails(map[string]any{"addressId": addressID.Hex()})
	}
	return address, nil
}

// snapshotCart validates every cart line against the catalog and copies it
// into an order line. The first unavailable line fails the checkout.
func (s *Service) snapshotCart(ctx context.Context, cart models.Cart) ([]models.OrderItem, map[primitive.ObjectID]models.Item, error) {
	items, err := s.items.FindByIDs(ctx, cartItemIDs(cart))
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to load cart items")
	}

	lines := make([]models.OrderItem, 0, len(cart.Items))
	for _, entry := range cart.Items {
		item, found := items[entry.ItemID]
		sizeVariant, colorVariant, problem := checkVariant(entry.ItemID, item, found, "", entry.Size, entry.Color.Name, entry.Quantity)
		if problem != nil {
			s.metrics.StockShortfall()
			return nil, nil, problem.err()
		}
		lines = append(lines, snapshotLine(entry, item, sizeVariant, colorVariant))
	}
	return lines, items, nil
}

func snapshotLine(entry models.CartEntry, item models.Item, size models.SizeVariant, color models.ColorVariant) models.OrderItem {
	image := ""
	if len(color.Images) > 0 {
		image = color.Images[0]
	} else if len(item.Images) > 0 {
		image = item.Images[0]
	}
	hex := entry.Color.HexCode
	if hex == "" {
		hex = color.HexCode
	}
	return models.OrderItem{
		ItemID:        entry.ItemID,
		Name:          item.Name,
		SKU:           color.SKU,
		Image:         image,
		Quantity:      entry.Quantity,
		Size:          size.Size,
		Color:         models.SelectedColor{Name: color.Name, HexCode: hex},
		Price:         entry.Price,
		DiscountPrice: entry.DiscountPrice,
		FinalPrice:    models.EffectivePrice(entry.Price, entry.DiscountPrice),
	}
}

func cartItemIDs(cart models.Cart) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(cart.Items))
	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, entry := range cart.Items {
		if _, ok := seen[entry.ItemID]; ok {
			continue
		}
		seen[entry.ItemID] = struct{}{}
		ids = append(ids, entry.ItemID)
	}
	return ids
}

// orderNumber is ORD + the last 8 digits of the epoch millisecond + a
// zero-padded 3 digit random suffix.
func (s *Service) orderNumber(now time.Time) string {
	return fmt.Sprintf("%s%08d%03d", orderNumberPrefix, now.UnixMilli()%100_000_000, s.random(1000))
}

// Package cart manages the per-user shopping cart.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repository"
)

const maxNoteLength = 500

type Service struct {
	carts repository.CartRepository
	items repository.ItemRepository
	log   *zap.Logger
	clock func() time.Time
}

func NewService(carts repository.CartRepository, items repository.ItemRepository, logger *zap.Logger) *Service {
	return &Service{
		carts: carts,
		items: items,
		log:   logging.OrNop(logger),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Summary holds totals derived from the cart's snapshotted prices.
type Summary struct {
	Lines     int     `json:"lines"`
	ItemCount int     `json:"itemCount"`
	Subtotal  float64 `json:"subtotal"`
	Savings   float64 `json:"savings"`
}

type View struct {
	Cart    models.Cart `json:"cart"`
	Summary Summary     `json:"summary"`
}

func Summarize(cart models.Cart) Summary {
	subtotal := decimal.Zero
	savings := decimal.Zero
	count := 0
	for _, entry := range cart.Items {
		qty := decimal.NewFromInt(int64(entry.Quantity))
		final := decimal.NewFromFloat(models.EffectivePrice(entry.Price, entry.DiscountPrice))
		subtotal = subtotal.Add(final.Mul(qty))
		savings = savings.Add(decimal.NewFromFloat(entry.Price).Sub(final).Mul(qty))
		count += entry.Quantity
	}
	return Summary{
		Lines:     len(cart.Items),
		ItemCount: count,
		Subtotal:  subtotal.Round(2).InexactFloat64(),
		Savings:   savings.Round(2).InexactFloat64(),
	}
}

func viewOf(cart models.Cart) View {
	return View{Cart: cart, Summary: Summarize(cart)}
}

// Get returns the user's active cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (View, error) {
	cart, err := s.active(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return viewOf(cart), nil
}

type AddInput struct {
	ItemID   primitive.ObjectID
	Quantity int
	Size     string
	Color    string
	Note     string
}

// AddItem snapshots the item's current price into the cart. Adding a variant
// already in the cart sums the quantities, capped at the cart maximum.
func (s *Service) AddItem(ctx context.Context, userID primitive.ObjectID, in AddInput) (View, error) {
	if err := validateQuantity(in.Quantity); err != nil {
		return View{}, err
	}
	if err := validateNote(in.Note); err != nil {
		return View{}, err
	}
	if in.ItemID.IsZero() {
		return View{}, apperr.Validation("itemId is required")
	}

	item, err := s.items.FindByID(ctx, in.ItemID)
	if errors.Is(err, repository.ErrNotFound) {
		return View{}, apperr.NotFound("", "item not found")
	}
	if err != nil {
		return View{}, apperr.Internal(err, "failed to load item")
	}
	if !item.Available() {
		return View{}, unavailable(item, in.Size, in.Color, "item is no longer available")
	}
	sizeVariant, ok := item.FindSize(in.Size)
	if !ok {
		return View{}, unavailable(item, in.Size, in.Color, fmt.Sprintf("size %s is not offered", in.Size))
	}
	colorVariant, ok := sizeVariant.FindColor(in.Color)
	if !ok {
		return View{}, unavailable(item, in.Size, in.Color, fmt.Sprintf("color %s is not offered in size %s", in.Color, sizeVariant.Size))
	}

	cart, err := s.active(ctx, userID)
	if err != nil {
		return View{}, err
	}

	entry := models.CartEntry{
		ItemID:        item.ID,
		Quantity:      in.Quantity,
		Size:          sizeVariant.Size,
		Color:         models.SelectedColor{Name: colorVariant.Name, HexCode: colorVariant.HexCode},
		Price:         item.Price,
		DiscountPrice: item.DiscountPrice,
		Note:          strings.TrimSpace(in.Note),
		AddedAt:       s.clock(),
	}
	wanted := min(cart.QuantityOf(entry)+in.Quantity, models.MaxCartQuantity)
	if colorVariant.Stock < wanted {
		return View{}, unavailable(item, sizeVariant.Size, colorVariant.Name,
			fmt.Sprintf("insufficient stock: requested %d, available %d", wanted, colorVariant.Stock)).
			WithDetails(map[string]any{"requested": wanted, "available": colorVariant.Stock})
	}

	cart.Merge(entry)
	if err := s.save(ctx, cart); err != nil {
		return View{}, err
	}
	s.log.Debug("cart item added",
		zap.String("userId", userID.Hex()),
		zap.String("itemId", item.ID.Hex()),
		zap.Int("quantity", in.Quantity),
	)
	return viewOf(cart), nil
}

type UpdateInput struct {
	Quantity *int
	Note     *string
}

func (s *Service) UpdateItem(ctx context.Context, userID, entryID primitive.ObjectID, in UpdateInput) (View, error) {
	if in.Quantity == nil && in.Note == nil {
		return View{}, apperr.Validation("quantity or note is required")
	}
	if in.Quantity != nil {
		if err := validateQuantity(*in.Quantity); err != nil {
			return View{}, err
		}
	}
	if in.Note != nil {
		if err := validateNote(*in.Note); err != nil {
			return View{}, err
		}
	}

	cart, err := s.active(ctx, userID)
	if err != nil {
		return View{}, err
	}
	idx := cart.IndexOf(entryID)
	if idx < 0 {
		return View{}, apperr.NotFound("", "cart item not found")
	}

	entry := &cart.Items[idx]
	if in.Quantity != nil {
		item, err := s.items.FindByID(ctx, entry.ItemID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return View{}, apperr.Internal(err, "failed to load item")
		}
		if stock, ok := variantStock(item, err == nil, entry.Size, entry.Color.Name); !ok || stock < *in.Quantity {
			return View{}, unavailable(item, entry.Size, entry.Color.Name, "requested quantity is not available").
				WithDetails(map[string]any{"requested": *in.Quantity, "available": max(stock, 0)})
		}
		entry.Quantity = *in.Quantity
	}
	if in.Note != nil {
		entry.Note = strings.TrimSpace(*in.Note)
	}

	if err := s.save(ctx, cart); err != nil {
		return View{}, err
	}
	return viewOf(cart), nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, entryID primitive.ObjectID) (View, error) {
	cart, err := s.active(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if !cart.Remove(entryID) {
		return View{}, apperr.NotFound("", "cart item not found")
	}
	if err := s.save(ctx, cart); err != nil {
		return View{}, err
	}
	return viewOf(cart), nil
}

func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) (View, error) {
	cart, err := s.active(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		return View{}, apperr.Internal(err, "failed to clear cart")
	}
	cart.Items = []models.CartEntry{}
	return viewOf(cart), nil
}

func (s *Service) active(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	cart, err := s.carts.FindActive(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.Cart{}, apperr.Internal(err, "failed to load cart")
	}

	now := s.clock()
	cart = models.Cart{UserID: userID, Items: []models.CartEntry{}, IsActive: true, CreatedAt: now, UpdatedAt: now}
	err = s.carts.Insert(ctx, &cart)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// Lost a race with a concurrent first access.
		cart, err = s.carts.FindActive(ctx, userID)
	}
	if err != nil {
		return models.Cart{}, apperr.Internal(err, "failed to create cart")
	}
	return cart, nil
}

func (s *Service) save(ctx context.Context, cart models.Cart) error {
	cart.UpdatedAt = s.clock()
	if err := s.carts.Save(ctx, cart); err != nil {
		return apperr.Internal(err, "failed to save cart")
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty < models.MinCartQuantity || qty > models.MaxCartQuantity {
		return apperr.Validationf("quantity must be between %d and %d", models.MinCartQuantity, models.MaxCartQuantity)
	}
	return nil
}

func validateNote(note string) error {
	if len(note) > maxNoteLength {
		return apperr.Validationf("note must be at most %d characters", maxNoteLength)
	}
	return nil
}

func variantStock(item models.Item, found bool, size, color string) (int, bool) {
	if !found || !item.Available() {
		return 0, false
	}
	sizeVariant, ok := item.FindSize(size)
	if !ok {
		return 0, false
	}
	colorVariant, ok := sizeVariant.FindColor(color)
	if !ok {
		return 0, false
	}
	return colorVariant.Stock, true
}

func unavailable(item models.Item, size, color, reason string) *apperr.Error {
	return apperr.New(apperr.KindAvailability, apperr.CodeItemUnavailable, item.Name+": "+reason).
		WithDetails(map[string]any{
			"itemId": item.ID.Hex(),
			"name":   item.Name,
			"size":   size,
			"color":  color,
			"reason": reason,
		})
}

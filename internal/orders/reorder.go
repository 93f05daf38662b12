package orders

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repository"
)

type ReorderResult struct {
	AddedToCart      int               `json:"addedToCart"`
	UnavailableItems []UnavailableItem `json:"unavailableItems"`
	Cart             models.Cart       `json:"cart"`
}

// Reorder copies the still-available lines of a past order into the owner's
// cart at current catalog prices. It fails only when no line survives.
func (s *Service) Reorder(ctx context.Context, orderID, userID primitive.ObjectID) (ReorderResult, error) {
	order, err := s.loadOwned(ctx, orderID, userID)
	if err != nil {
		return ReorderResult{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return ReorderResult{}, apperr.Internal(err, "failed to load order items")
	}

	now := s.clock()
	result := ReorderResult{UnavailableItems: []UnavailableItem{}}
	entries := make([]models.CartEntry, 0, len(order.Items))
	for _, line := range order.Items {
		item, found := items[line.ItemID]
		sizeVariant, colorVariant, problem := checkVariant(line.ItemID, item, found, line.Name, line.Size, line.Color.Name, line.Quantity)
		if problem != nil {
			result.UnavailableItems = append(result.UnavailableItems, *problem)
			continue
		}
		entries = append(entries, models.CartEntry{
			ItemID:        item.ID,
			Quantity:      line.Quantity,
			Size:          sizeVariant.Size,
			Color:         models.SelectedColor{Name: colorVariant.Name, HexCode: colorVariant.HexCode},
			Price:         item.Price,
			DiscountPrice: item.DiscountPrice,
			AddedAt:       now,
		})
	}

	if len(entries) == 0 {
		s.metrics.StockShortfall()
		return result, apperr.New(apperr.KindAvailability, apperr.CodeNoItemsAvailable, "none of the items in this order are available").
			WithDetails(map[string]any{"unavailableItems": result.UnavailableItems, "addedToCart": 0})
	}

	cart, err := s.activeCart(ctx, userID)
	if err != nil {
		return ReorderResult{}, err
	}
	for _, entry := range entries {
		cart.Merge(entry)
	}
	cart.UpdatedAt = now
	if err := s.carts.Save(ctx, cart); err != nil {
		return ReorderResult{}, apperr.Internal(err, "failed to update cart")
	}

	s.log.Info("order reordered",
		zap.String("orderNumber", order.OrderNumber),
		zap.Int("added", len(entries)),
		zap.Int("unavailable", len(result.UnavailableItems)),
	)
	result.AddedToCart = len(entries)
	result.Cart = cart
	return result, nil
}

func (s *Service) activeCart(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
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
		cart, err = s.carts.FindActive(ctx, userID)
	}
	if err != nil {
		return models.Cart{}, apperr.Internal(err, "failed to create cart")
	}
	return cart, nil
}

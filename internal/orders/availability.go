package orders

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// UnavailableItem describes a line that can no longer be fulfilled.
type UnavailableItem struct {
	ItemID    primitive.ObjectID `json:"itemId"`
	Name      string             `json:"name"`
	Size      string             `json:"size"`
	Color     string             `json:"color"`
	Requested int                `json:"requested"`
	Available int                `json:"available"`
	Reason    string             `json:"reason"`
}

func (u UnavailableItem) details() map[string]any {
	return map[string]any{
		"itemId":    u.ItemID.Hex(),
		"name":      u.Name,
		"size":      u.Size,
		"color":     u.Color,
		"requested": u.Requested,
		"available": u.Available,
		"reason":    u.Reason,
	}
}

func (u UnavailableItem) err() *apperr.Error {
	label := u.Name
	if label == "" {
		label = u.ItemID.Hex()
	}
	return apperr.New(apperr.KindAvailability, apperr.CodeItemUnavailable, label+": "+u.Reason).
		WithDetails(u.details())
}

// checkVariant resolves the requested variant of item and verifies that qty
// units are in stock. name is used when the item itself is gone.
func checkVariant(itemID primitive.ObjectID, item models.Item, found bool, name, size, color string, qty int) (models.SizeVariant, models.ColorVariant, *UnavailableItem) {
	problem := &UnavailableItem{
		ItemID:    itemID,
		Name:      name,
		Size:      size,
		Color:     color,
		Requested: qty,
	}
	if !found || !item.Available() {
		problem.Reason = "item is no longer available"
		return models.SizeVariant{}, models.ColorVariant{}, problem
	}
	problem.Name = item.Name

	sizeVariant, ok := item.FindSize(size)
	if !ok {
		problem.Reason = fmt.Sprintf("size %s is no longer available", size)
		return models.SizeVariant{}, models.ColorVariant{}, problem
	}
	colorVariant, ok := sizeVariant.FindColor(color)
	if !ok {
		problem.Reason = fmt.Sprintf("color %s is no longer available in size %s", color, sizeVariant.Size)
		return models.SizeVariant{}, models.ColorVariant{}, problem
	}
	if colorVariant.Stock < qty {
		problem.Available = colorVariant.Stock
		problem.Reason = fmt.Sprintf("insufficient stock: requested %d, available %d", qty, colorVariant.Stock)
		return models.SizeVariant{}, models.ColorVariant{}, problem
	}
	return sizeVariant, colorVariant, nil
}

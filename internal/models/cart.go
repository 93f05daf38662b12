package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinCartQuantity = 1
	MaxCartQuantity = 99
)

// SelectedColor is the color chosen for a cart entry or order line.
type SelectedColor struct {
	Name    string `bson:"name" json:"name"`
	HexCode string `bson:"hexCode,omitempty" json:"hexCode,omitempty"`
}

// CartEntry snapshots the item price at the moment it was added.
type CartEntry struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	ItemID        primitive.ObjectID `bson:"itemId" json:"itemId"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	Size          string             `bson:"size" json:"size"`
	Color         SelectedColor      `bson:"color" json:"color"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice float64            `bson:"discountPrice" json:"discountPrice"`
	Note          string             `bson:"note,omitempty" json:"note,omitempty"`
	AddedAt       time.Time          `bson:"addedAt" json:"addedAt"`
}

// Cart is the per-user basket; a user has at most one active cart.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartEntry        `bson:"items" json:"items"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SameVariant reports whether two entries address the same (item, size, color).
func (e CartEntry) SameVariant(other CartEntry) bool {
	return e.ItemID == other.ItemID &&
		strings.EqualFold(e.Size, other.Size) &&
		strings.EqualFold(e.Color.Name, other.Color.Name)
}

// Merge adds entry to the cart, folding it into an existing entry for the same
// variant by summing quantities capped at MaxCartQuantity. The stored entry is
// returned.
func (c *Cart) Merge(entry CartEntry) CartEntry {
	for i := range c.Items {
		if !c.Items[i].SameVariant(entry) {
			continue
		}
		c.Items[i].Quantity = min(c.Items[i].Quantity+entry.Quantity, MaxCartQuantity)
		if entry.Note != "" {
			c.Items[i].Note = entry.Note
		}
		return c.Items[i]
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	entry.Quantity = min(entry.Quantity, MaxCartQuantity)
	c.Items = append(c.Items, entry)
	return entry
}

// QuantityOf returns the quantity already held for the variant of entry.
func (c Cart) QuantityOf(entry CartEntry) int {
	for _, existing := range c.Items {
		if existing.SameVariant(entry) {
			return existing.Quantity
		}
	}
	return 0
}

func (c Cart) IndexOf(entryID primitive.ObjectID) int {
	for i, e := range c.Items {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

func (c *Cart) Remove(entryID primitive.ObjectID) bool {
	idx := c.IndexOf(entryID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

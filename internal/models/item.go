package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ColorVariant carries its own stock count and a catalog-wide unique SKU.
type ColorVariant struct {
	Name    string   `bson:"name" json:"name"`
	HexCode string   `bson:"hexCode,omitempty" json:"hexCode,omitempty"`
	Stock   int      `bson:"stock" json:"stock"`
	SKU     string   `bson:"sku" json:"sku"`
	Images  []string `bson:"images,omitempty" json:"images,omitempty"`
}

type SizeVariant struct {
	Size   string         `bson:"size" json:"size"`
	Colors []ColorVariant `bson:"colors" json:"colors"`
}

type Item struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name          string              `bson:"name" json:"name"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Brand         string              `bson:"brand,omitempty" json:"brand,omitempty"`
	CategoryID    primitive.ObjectID  `bson:"categoryId" json:"categoryId"`
	SubcategoryID *primitive.ObjectID `bson:"subcategoryId,omitempty" json:"subcategoryId,omitempty"`
	Price         float64             `bson:"price" json:"price"`
	DiscountPrice float64             `bson:"discountPrice" json:"discountPrice"`
	Images        []string            `bson:"images,omitempty" json:"images,omitempty"`
	Tags          StringList          `bson:"tags" json:"tags"`
	Sizes         []SizeVariant       `bson:"sizes" json:"sizes"`
	Rating        float64             `bson:"rating" json:"rating"`
	ReviewCount   int                 `bson:"reviewCount" json:"reviewCount"`
	IsActive      bool                `bson:"isActive" json:"isActive"`
	IsDeleted     bool                `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt     *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// ItemSummary is the lightweight item view embedded in order and cart responses.
type ItemSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Brand string             `json:"brand,omitempty"`
	Image string             `json:"image,omitempty"`
}

func (it Item) Summary() ItemSummary {
	summary := ItemSummary{ID: it.ID, Name: it.Name, Brand: it.Brand}
	if len(it.Images) > 0 {
		summary.Image = it.Images[0]
	}
	return summary
}

// Available reports whether the item can still be sold at all.
func (it Item) Available() bool {
	return it.IsActive && !it.IsDeleted
}

// FindSize matches sizes case-insensitively.
func (it Item) FindSize(size string) (SizeVariant, bool) {
	for _, s := range it.Sizes {
		if strings.EqualFold(s.Size, strings.TrimSpace(size)) {
			return s, true
		}
	}
	return SizeVariant{}, false
}

// FindColor matches color names case-insensitively.
func (s SizeVariant) FindColor(name string) (ColorVariant, bool) {
	for _, c := range s.Colors {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return ColorVariant{}, false
}

// TotalStock sums stock across every variant.
func (it Item) TotalStock() int {
	total := 0
	for _, s := range it.Sizes {
		for _, c := range s.Colors {
			total += c.Stock
		}
	}
	return total
}

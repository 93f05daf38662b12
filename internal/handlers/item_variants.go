package handlers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/models"
)

type ColorRequest struct {
	Name    string   `json:"name" binding:"required"`
	HexCode string   `json:"hexCode"`
	Stock   int      `json:"stock" binding:"gte=0"`
	SKU     string   `json:"sku"`
	Images  []string `json:"images"`
}

type SizeRequest struct {
	Size   string         `json:"size" binding:"required"`
	Colors []ColorRequest `json:"colors" binding:"required,min=1,dive"`
}

// newSKUPrefix returns the per-item prefix used for generated SKUs.
func newSKUPrefix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func skuPart(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), "-"))
}

// normalizeVariants trims names, rejects duplicate sizes, duplicate colors
// within a size and duplicate SKUs, and fills in missing SKUs.
func normalizeVariants(sizes []SizeRequest, skuPrefix string) ([]models.SizeVariant, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("at least one size is required")
	}

	seenSizes := make(map[string]struct{}, len(sizes))
	seenSKUs := map[string]struct{}{}
	out := make([]models.SizeVariant, 0, len(sizes))

	for _, s := range sizes {
		size := strings.TrimSpace(s.Size)
		if size == "" {
			return nil, fmt.Errorf("size name is required")
		}
		sizeKey := strings.ToLower(size)
		if _, dup := seenSizes[sizeKey]; dup {
			return nil, fmt.Errorf("duplicate size %s", size)
		}
		seenSizes[sizeKey] = struct{}{}

		if len(s.Colors) == 0 {
			return nil, fmt.Errorf("size %s needs at least one color", size)
		}

		seenColors := make(map[string]struct{}, len(s.Colors))
		variant := models.SizeVariant{Size: size, Colors: make([]models.ColorVariant, 0, len(s.Colors))}
		for _, c := range s.Colors {
			name := strings.TrimSpace(c.Name)
			if name == "" {
				return nil, fmt.Errorf("color name is required in size %s", size)
			}
			colorKey := strings.ToLower(name)
			if _, dup := seenColors[colorKey]; dup {
				return nil, fmt.Errorf("duplicate color %s in size %s", name, size)
			}
			seenColors[colorKey] = struct{}{}

			if c.Stock < 0 {
				return nil, fmt.Errorf("stock must be zero or greater for %s/%s", size, name)
			}

			sku := strings.ToUpper(strings.TrimSpace(c.SKU))
			if sku == "" {
				sku = fmt.Sprintf("%s-%s-%s", skuPrefix, skuPart(size), skuPart(name))
			}
			if _, dup := seenSKUs[sku]; dup {
				return nil, fmt.Errorf("duplicate sku %s", sku)
			}
			seenSKUs[sku] = struct{}{}

			variant.Colors = append(variant.Colors, models.ColorVariant{
				Name:    name,
				HexCode: strings.TrimSpace(c.HexCode),
				Stock:   c.Stock,
				SKU:     sku,
				Images:  c.Images,
			})
		}
		out = append(out, variant)
	}

	return out, nil
}

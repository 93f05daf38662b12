package handlers

import "storefront/internal/models"

type pricingUpdateInput struct {
	Price         *float64
	DiscountPrice *float64
}

type pricingUpdateResult struct {
	Price            float64
	DiscountPrice    float64
	SetPrice         bool
	SetDiscountPrice bool
}

// resolvePricingUpdate merges a partial price change over the stored pair.
// Lowering the price under an existing discount clears the discount.
func resolvePricingUpdate(existingPrice, existingDiscount float64, input pricingUpdateInput) (pricingUpdateResult, error) {
	result := pricingUpdateResult{
		Price:         existingPrice,
		DiscountPrice: existingDiscount,
	}

	if input.Price != nil {
		result.Price = *input.Price
		result.SetPrice = true
		if input.DiscountPrice == nil && result.DiscountPrice >= result.Price {
			result.DiscountPrice = 0
			result.SetDiscountPrice = true
		}
	}

	if input.DiscountPrice != nil {
		result.DiscountPrice = *input.DiscountPrice
		result.SetDiscountPrice = true
	}

	if err := models.ValidatePricing(result.Price, result.DiscountPrice); err != nil {
		return pricingUpdateResult{}, err
	}

	return result, nil
}

func isItemOnSale(price, discountPrice float64) bool {
	return discountPrice > 0 && discountPrice < price
}

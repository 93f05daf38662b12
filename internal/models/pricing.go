package models

import "fmt"

// EffectivePrice is the discount price when it is positive, else the list price.
func EffectivePrice(price, discountPrice float64) float64 {
	if discountPrice > 0 {
		return discountPrice
	}
	return price
}

// ValidatePricing checks a list price and an optional discount price.
func ValidatePricing(price, discountPrice float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if discountPrice < 0 {
		return fmt.Errorf("discountPrice must be zero or greater")
	}
	if discountPrice > 0 && discountPrice >= price {
		return fmt.Errorf("discountPrice must be less than price")
	}
	return nil
}

package models

import "testing"

func TestEffectivePriceUsesDiscountWhenPositive(t *testing.T) {
	if got := EffectivePrice(100, 80); got != 80 {
		t.Fatalf("expected discount price 80, got %v", got)
	}
	if got := EffectivePrice(100, 0); got != 100 {
		t.Fatalf("expected list price 100 when no discount, got %v", got)
	}
	if got := EffectivePrice(100, -5); got != 100 {
		t.Fatalf("expected list price 100 for negative discount, got %v", got)
	}
}

func TestValidatePricingRejectsDiscountAtOrAbovePrice(t *testing.T) {
	for _, discount := range []float64{100, 120} {
		if err := ValidatePricing(100, discount); err == nil {
			t.Fatalf("expected validation error for discountPrice=%v", discount)
		}
	}
}

func TestValidatePricingAcceptsNoDiscount(t *testing.T) {
	if err := ValidatePricing(49.99, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePricing(0, 0); err == nil {
		t.Fatal("expected error for zero price")
	}
}

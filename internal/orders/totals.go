package orders

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// Totals carries the monetary fields of an order, rounded to cents.
type Totals struct {
	ItemCount       int     `json:"itemCount"`
	Subtotal        float64 `json:"subtotal"`
	Tax             float64 `json:"tax"`
	ShippingCharges float64 `json:"shippingCharges"`
	Discount        float64 `json:"discount"`
	TotalAmount     float64 `json:"totalAmount"`
	Savings         float64 `json:"savings"`
}

// ComputeTotals sums finalPrice x quantity over lines and applies
// totalAmount = subtotal + tax + shippingCharges - discount. Every component
// is rounded to cents first so the stored fields always add up.
func ComputeTotals(lines []models.OrderItem, tax, shippingCharges, discount float64) Totals {
	subtotal := decimal.Zero
	savings := decimal.Zero
	count := 0
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		final := decimal.NewFromFloat(line.FinalPrice)
		subtotal = subtotal.Add(final.Mul(qty))
		savings = savings.Add(decimal.NewFromFloat(line.Price).Sub(final).Mul(qty))
		count += line.Quantity
	}

	subtotal = subtotal.Round(2)
	taxAmount := decimal.NewFromFloat(tax).Round(2)
	shipping := decimal.NewFromFloat(shippingCharges).Round(2)
	discountAmount := decimal.NewFromFloat(discount).Round(2)
	total := subtotal.Add(taxAmount).Add(shipping).Sub(discountAmount)

	return Totals{
		ItemCount:       count,
		Subtotal:        cents(subtotal),
		Tax:             cents(taxAmount),
		ShippingCharges: cents(shipping),
		Discount:        cents(discountAmount),
		TotalAmount:     cents(total),
		Savings:         cents(savings),
	}
}

// TotalsOf recomputes totals for a stored order.
func TotalsOf(order models.Order) Totals {
	return ComputeTotals(order.Items, order.Tax, order.ShippingCharges, order.Discount)
}

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

package services

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(500)
	// FlatShippingCost applies to every order at or below the threshold.
	FlatShippingCost = decimal.NewFromInt(50)
	// TaxRate is the flat 18% GST.
	TaxRate = decimal.RequireFromString("0.18")
)

// DeliveryWindow is added to the placement time to estimate delivery.
const DeliveryWindow = 7 * 24 * time.Hour

// Pricing holds the derived amounts of an order.
type Pricing struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// PriceOrder derives shipping, tax and total from a subtotal. Tax is rounded to the
// nearest whole currency unit, halves away from zero.
func PriceOrder(subtotal decimal.Decimal) Pricing {
	shipping := FlatShippingCost
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(0)
	return Pricing{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}
}

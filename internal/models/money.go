package models

import "github.com/shopspring/decimal"

func init() {
	// Prices and totals are emitted as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Money builds a decimal amount from a whole or fractional currency value.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Package utils provides shared utility functions.
package utils

import (
	"github.com/shopspring/decimal"
)

// Venue price bounds: probabilities are quoted in (0,1) with 3 decimals.
var (
	minPrice = decimal.NewFromFloat(0.001)
	maxPrice = decimal.NewFromFloat(0.999)
)

// RoundPrice rounds a price to 3 decimals and clamps it to [0.001, 0.999].
func RoundPrice(p float64) float64 {
	d := decimal.NewFromFloat(p).Round(3)
	if d.LessThan(minPrice) {
		d = minPrice
	}
	if d.GreaterThan(maxPrice) {
		d = maxPrice
	}
	f, _ := d.Float64()
	return f
}

// FormatPrice renders a price as the venue wire string (≤3 decimals).
func FormatPrice(p float64) string {
	return decimal.NewFromFloat(RoundPrice(p)).StringFixed(3)
}

// RoundAmount rounds a currency amount down to 2 decimals. Rounding down
// keeps a computed stake within the caller's spend limit.
func RoundAmount(a float64) float64 {
	f, _ := decimal.NewFromFloat(a).RoundDown(2).Float64()
	return f
}

// FormatAmount renders an amount as the venue wire string (2 decimals).
func FormatAmount(a float64) string {
	return decimal.NewFromFloat(a).RoundDown(2).StringFixed(2)
}

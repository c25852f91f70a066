// Package kpi holds the commission and margin arithmetic. All money values
// are rounded to cents using round-half-up.
package kpi

import "math"

// Round2 rounds to 2 decimal places, half up.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Fee computes the marketplace cut for a sale: percent of the price plus a
// flat per-transaction fee.
func Fee(price, percent, flat float64) float64 {
	return Round2(price*percent/100 + flat)
}

// GrossMargin is what remains of a sale after the purchase price and the
// marketplace fee.
func GrossMargin(price, purchasePrice, fee float64) float64 {
	return Round2(price - purchasePrice - fee)
}

package chart

import "github.com/shopspring/decimal"

// formatPrice renders a price with two fixed decimals behind the currency
// symbol, rounding half away from zero on the decimal value.
func formatPrice(currency string, p float64) string {
	return currency + decimal.NewFromFloat(p).StringFixed(2)
}

// formatVolume renders a volume in whole thousands, e.g. "125K".
func formatVolume(v float64) string {
	return decimal.NewFromFloat(v).Div(decimal.NewFromInt(1000)).StringFixed(0) + "K"
}

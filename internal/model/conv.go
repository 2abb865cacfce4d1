package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// PricePlaces is the display precision for FX prices.
const PricePlaces = 5

// FormatPrice renders p with PricePlaces decimals, or "N/A" when absent.
func FormatPrice(p *float64) string {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return "N/A"
	}
	return decimal.NewFromFloat(*p).StringFixed(PricePlaces)
}

// RoundPrice rounds v half-away-from-zero to PricePlaces decimals.
func RoundPrice(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(PricePlaces).Float64()
	return f
}

// Float returns a pointer to v, or nil when v is NaN.
func Float(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Itoa is a minimal int-to-string converter for hot-path usage.
// Avoids importing strconv to eliminate unnecessary overhead.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

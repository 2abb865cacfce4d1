package confluence

import "math"

// Risk holds symmetric stop-loss / take-profit levels around the last close.
// They do not depend on the suggested direction.
type Risk struct {
	StopLoss   float64
	TakeProfit float64
}

// CalculateRisk returns close -/+ mult*ATR. ok is false when there are no
// closes or ATR is zero or undefined.
func CalculateRisk(closes []float64, atr, mult float64) (Risk, bool) {
	if len(closes) == 0 || math.IsNaN(atr) || atr == 0 {
		return Risk{}, false
	}
	last := closes[len(closes)-1]
	return Risk{
		StopLoss:   last - mult*atr,
		TakeProfit: last + mult*atr,
	}, true
}

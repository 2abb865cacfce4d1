package confluence

import (
	"math"

	"fx-confluence/internal/indicator"
	"fx-confluence/internal/model"
)

// Divergence compares the displacement of price and the CVD proxy between
// the last bar t and bar t-window. Opposite signs give bullish (price down,
// CVD up) or bearish (price up, CVD down); anything else, including fewer
// than window+2 bars, gives none.
func Divergence(closes []float64, cvd indicator.Line, window int) model.Divergence {
	n := len(closes)
	if window <= 0 || n < window+2 || len(cvd) != n {
		return model.DivergenceNone
	}
	t, from := n-1, n-1-window
	price := closes[t] - closes[from]
	delta := cvd[t] - cvd[from]
	if math.IsNaN(price) || math.IsNaN(delta) {
		return model.DivergenceNone
	}
	switch {
	case price < 0 && delta > 0:
		return model.DivergenceBullish
	case price > 0 && delta < 0:
		return model.DivergenceBearish
	}
	return model.DivergenceNone
}

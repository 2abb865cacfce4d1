package confluence

import (
	"math"

	"fx-confluence/internal/indicator"
)

// ATRFloorRatio replaces a zero or undefined ATR with this fraction of the
// last close so the band never collapses to a point.
const ATRFloorRatio = 0.001

// InZone reports whether the latest close lies within k*ATR of the latest MA.
// Only the final bar is considered. An MA with no defined value, or an
// undefined final MA, is never in zone.
func InZone(closes []float64, ma indicator.Line, atr, k float64) bool {
	if len(closes) == 0 || !ma.AnyDefined() {
		return false
	}
	maLast, ok := ma.Last()
	if !ok {
		return false
	}
	last := closes[len(closes)-1]
	if math.IsNaN(atr) || atr == 0 {
		atr = last * ATRFloorRatio
	}
	return math.Abs(last-maLast) <= k*atr
}

// AnyInZone is InZone OR-ed across several MAs.
func AnyInZone(closes []float64, mas []indicator.Line, atr, k float64) bool {
	for _, ma := range mas {
		if InZone(closes, ma, atr, k) {
			return true
		}
	}
	return false
}

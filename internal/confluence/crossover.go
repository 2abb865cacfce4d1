package confluence

import "fx-confluence/internal/indicator"

// Crossed reports whether a-b changed sign between any two adjacent bars
// within the last lookback bars. Gaps in either line are forward-filled
// (back-filled at the start) first. The result is symmetric in a and b.
func Crossed(a, b indicator.Line, lookback int) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 || lookback < 2 {
		return false
	}
	fa := a[len(a)-n:].Filled()
	fb := b[len(b)-n:].Filled()

	start := n - lookback + 1
	if start < 1 {
		start = 1
	}
	for i := start; i < n; i++ {
		cur, prev := fa[i], fa[i-1]
		curB, prevB := fb[i], fb[i-1]
		// NaN comparisons are false, so all-undefined lines never cross.
		if (cur > curB && prev <= prevB) || (cur < curB && prev >= prevB) {
			return true
		}
	}
	return false
}

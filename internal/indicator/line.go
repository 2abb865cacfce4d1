package indicator

import (
	"bytes"
	"math"
	"strconv"

	"fx-confluence/internal/model"
)

// Line is an indicator series aligned index-for-index with its source bars.
// NaN marks an undefined point.
type Line []float64

// NaNLine returns a Line of n undefined points.
func NaNLine(n int) Line {
	l := make(Line, n)
	for i := range l {
		l[i] = math.NaN()
	}
	return l
}

// Run feeds every bar to ind and records Value() after each one.
func Run(ind Indicator, bars []model.Bar) Line {
	out := make(Line, len(bars))
	for i := range bars {
		ind.Update(bars[i])
		out[i] = ind.Value()
	}
	return out
}

// Defined reports whether index i holds a value.
func (l Line) Defined(i int) bool {
	return i >= 0 && i < len(l) && !math.IsNaN(l[i])
}

// Last returns the final point; ok is false when empty or undefined.
func (l Line) Last() (float64, bool) {
	if len(l) == 0 || math.IsNaN(l[len(l)-1]) {
		return math.NaN(), false
	}
	return l[len(l)-1], true
}

// AnyDefined reports whether at least one point is defined.
func (l Line) AnyDefined() bool {
	for _, v := range l {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// FirstDefined returns the index of the first defined point, or -1.
func (l Line) FirstDefined() int {
	for i, v := range l {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// Filled returns a copy with gaps forward-filled and any leading gap
// back-filled from the first defined value. An all-NaN line stays all-NaN.
func (l Line) Filled() Line {
	out := make(Line, len(l))
	copy(out, l)
	first := out.FirstDefined()
	if first < 0 {
		return out
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	for i := first + 1; i < len(out); i++ {
		if math.IsNaN(out[i]) {
			out[i] = out[i-1]
		}
	}
	return out
}

// MarshalJSON encodes undefined points as null.
func (l Line) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(l) * 10)
	buf.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

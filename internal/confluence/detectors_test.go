package confluence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"fx-confluence/internal/indicator"
	"fx-confluence/internal/model"
)

var nan = math.NaN()

func TestInZone_ATRFloor(t *testing.T) {
	// floor = 0.1% of 100 = 0.1
	assert.True(t, InZone([]float64{100}, indicator.Line{100}, 0, 1.5), "on the MA is in zone for any k")
	assert.True(t, InZone([]float64{100}, indicator.Line{100}, 0, 0.01))
	assert.False(t, InZone([]float64{100}, indicator.Line{101}, 0, 1.5), "1.5*0.1 < 1")
	assert.False(t, InZone([]float64{100}, indicator.Line{101}, nan, 1.5), "undefined ATR uses the floor too")
	assert.True(t, InZone([]float64{100}, indicator.Line{100.1}, 0, 1.5))
}

func TestInZone_BoundaryInclusive(t *testing.T) {
	// Every operand is exact in binary: |100-101| == 2*0.5.
	assert.True(t, InZone([]float64{100}, indicator.Line{101}, 0.5, 2))
	assert.True(t, InZone([]float64{100}, indicator.Line{99}, 0.5, 2))
	assert.False(t, InZone([]float64{100}, indicator.Line{101.0625}, 0.5, 2))
}

func TestInZone_Band(t *testing.T) {
	closes := []float64{1.1000, 1.1010, 1.1020}
	ma := indicator.Line{nan, 1.0990, 1.1000}
	assert.True(t, InZone(closes, ma, 0.0014, 1.5), "0.0020 <= 0.0021")
	assert.False(t, InZone(closes, ma, 0.0013, 1.5), "0.0020 > 0.00195")
}

func TestInZone_UndefinedMA(t *testing.T) {
	closes := []float64{1, 2, 3}
	assert.False(t, InZone(closes, indicator.NaNLine(3), 1, 100))
	assert.False(t, InZone(closes, nil, 1, 100))
	assert.False(t, InZone(closes, indicator.Line{3, 3, nan}, 1, 100), "final MA undefined")
	assert.False(t, InZone(nil, indicator.Line{1}, 1, 100))
}

func TestAnyInZone(t *testing.T) {
	closes := []float64{100}
	far, near := indicator.Line{120}, indicator.Line{100.5}
	assert.True(t, AnyInZone(closes, []indicator.Line{far, near}, 1, 1))
	assert.False(t, AnyInZone(closes, []indicator.Line{far}, 1, 1))
	assert.False(t, AnyInZone(closes, nil, 1, 1))
}

func TestCrossed(t *testing.T) {
	a := indicator.Line{1, 2, 3, 4, 5, 6}
	b := indicator.Line{3, 3, 3.5, 3.5, 3.5, 3.5}

	assert.True(t, Crossed(a, b, 10))
	assert.True(t, Crossed(a, b, 4), "flip between index 2 and 3 lies in the last 4 bars")
	assert.False(t, Crossed(a, b, 3), "last three bars: a already above b")
}

func TestCrossed_Symmetric(t *testing.T) {
	cases := []struct{ a, b indicator.Line }{
		{indicator.Line{1, 2, 3, 4}, indicator.Line{4, 3, 2, 1}},
		{indicator.Line{1, 1, 1, 1}, indicator.Line{1, 1, 1, 1}},
		{indicator.Line{nan, nan, 2, 5}, indicator.Line{3, 3, 3, 3}},
		{indicator.Line{5, 4, 4, 6}, indicator.Line{5, 5, 5, 5}},
		{indicator.NaNLine(4), indicator.Line{1, 2, 3, 4}},
	}
	for _, tc := range cases {
		for _, l := range []int{2, 3, 10} {
			assert.Equal(t, Crossed(tc.a, tc.b, l), Crossed(tc.b, tc.a, l), "a=%v b=%v L=%d", tc.a, tc.b, l)
		}
	}
}

func TestCrossed_GapsFilled(t *testing.T) {
	// Leading warm-up gap is back-filled with 2 (< 3); the rise to 5 crosses.
	assert.True(t, Crossed(indicator.Line{nan, nan, 2, 5}, indicator.Line{3, 3, 3, 3}, 10))
	// An interior gap carries 4 forward; no flip against a flat 3.
	assert.False(t, Crossed(indicator.Line{4, nan, nan, 4}, indicator.Line{3, 3, 3, 3}, 10))
	// Undefined lines never cross.
	assert.False(t, Crossed(indicator.NaNLine(5), indicator.NaNLine(5), 10))
	assert.False(t, Crossed(indicator.Line{1}, indicator.Line{2}, 10))
}

func TestCrossed_TouchCounts(t *testing.T) {
	// a <= b then a > b is a flip.
	assert.True(t, Crossed(indicator.Line{1, 3, 4}, indicator.Line{3, 3, 3}, 10))
}

func TestDivergence_Boundary(t *testing.T) {
	const w = 5
	// price down, CVD up between t-w and t
	closes := rising(w+2, 2, -0.1)
	cvd := indicator.Line(rising(w+2, 0, 1))

	assert.Equal(t, model.DivergenceBullish, Divergence(closes, cvd, w))
	assert.Equal(t, model.DivergenceNone, Divergence(closes[1:], cvd[1:], w), "len == w+1")
}

func TestDivergence_Classes(t *testing.T) {
	const w = 3
	up := rising(6, 1, 0.1)
	down := rising(6, 2, -0.1)

	assert.Equal(t, model.DivergenceBearish, Divergence(up, indicator.Line(down), w))
	assert.Equal(t, model.DivergenceBullish, Divergence(down, indicator.Line(up), w))
	assert.Equal(t, model.DivergenceNone, Divergence(up, indicator.Line(up), w), "same sign")
	assert.Equal(t, model.DivergenceNone, Divergence(down, indicator.Line(down), w))

	flat := []float64{1, 1, 1, 1, 1, 1}
	assert.Equal(t, model.DivergenceNone, Divergence(flat, indicator.Line(up), w), "zero price change")
}

func TestDivergence_UsesWindowEndpoints(t *testing.T) {
	// Only closes[t] and closes[t-w] matter; the path between is ignored.
	closes := []float64{9, 1.0, 5, -5, 0.9}
	cvd := indicator.Line{9, 0, -4, 7, 1}
	assert.Equal(t, model.DivergenceBullish, Divergence(closes, cvd, 3))
}

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		inverted bool
		bias     model.MacroBias
		div      model.Divergence
		want     model.Suggestion
	}{
		{false, model.MacroWeak, model.DivergenceBullish, model.SuggestBuy},
		{false, model.MacroStrong, model.DivergenceBullish, model.SuggestNoTrade},
		{false, model.MacroWeak, model.DivergenceBearish, model.SuggestNoTrade},
		{false, model.MacroStrong, model.DivergenceBearish, model.SuggestSell},
		{true, model.MacroWeak, model.DivergenceBullish, model.SuggestSell},
		{true, model.MacroStrong, model.DivergenceBullish, model.SuggestNoTrade},
		{true, model.MacroWeak, model.DivergenceBearish, model.SuggestNoTrade},
		{true, model.MacroStrong, model.DivergenceBearish, model.SuggestBuy},
	}
	for _, tc := range cases {
		got := Classify(Inputs{HasZone: true, Divergence: tc.div, Bias: tc.bias, Inverted: tc.inverted})
		assert.Equal(t, tc.want, got, "inverted=%v bias=%s div=%s", tc.inverted, tc.bias, tc.div)

		// crossover alone opens the gate the same way
		got = Classify(Inputs{Crossed: true, Divergence: tc.div, Bias: tc.bias, Inverted: tc.inverted})
		assert.Equal(t, tc.want, got)
	}
}

func TestClassify_Gates(t *testing.T) {
	for _, inv := range []bool{false, true} {
		for _, bias := range []model.MacroBias{model.MacroStrong, model.MacroWeak} {
			for _, div := range []model.Divergence{model.DivergenceNone, model.DivergenceBullish, model.DivergenceBearish} {
				got := Classify(Inputs{Divergence: div, Bias: bias, Inverted: inv})
				assert.Equal(t, model.SuggestAwaitZone, got)
			}
			got := Classify(Inputs{HasZone: true, Divergence: model.DivergenceNone, Bias: bias, Inverted: inv})
			assert.Equal(t, model.SuggestAwaitConfirmation, got)
		}
	}
}

func TestCalculateRisk(t *testing.T) {
	closes := []float64{1.0900, 1.1000}
	r, ok := CalculateRisk(closes, 0.0025, 2)
	assert.True(t, ok)
	assert.InDelta(t, 0.005, 1.1000-r.StopLoss, 1e-12)
	assert.InDelta(t, 0.005, r.TakeProfit-1.1000, 1e-12)
	assert.InDelta(t, r.TakeProfit-1.1000, 1.1000-r.StopLoss, 1e-12)

	_, ok = CalculateRisk(closes, 0, 2)
	assert.False(t, ok)
	_, ok = CalculateRisk(closes, nan, 2)
	assert.False(t, ok)
	_, ok = CalculateRisk(nil, 0.01, 2)
	assert.False(t, ok)
}

func TestMacroBias(t *testing.T) {
	assert.Equal(t, model.MacroStrong, MacroBias(indicator.Line{110}, indicator.Line{100}))
	assert.Equal(t, model.MacroWeak, MacroBias(indicator.Line{100}, indicator.Line{110}))
	assert.Equal(t, model.MacroWeak, MacroBias(indicator.Line{100}, indicator.Line{100}))
	assert.Equal(t, model.MacroWeak, MacroBias(indicator.Line{nan}, indicator.Line{nan}))
	assert.Equal(t, model.MacroWeak, MacroBias(nil, nil))
}

package indicator

import (
	"math"

	"fx-confluence/internal/model"
)

// ATR calculates Average True Range as the simple rolling mean of true range.
//
//	TR_t = max(high_t - low_t, |high_t - close_{t-1}|, |low_t - close_{t-1}|)
//
// The first bar has no previous close, so its TR is high - low. The result is
// undefined for the first period-1 bars.
type ATR struct {
	period    int
	prevClose float64
	trs       *SMA
	count     int
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period, trs: NewSMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + model.Itoa(a.period) }

// trueRange returns the TR of bar against the previous close.
func (a *ATR) trueRange(bar model.Bar) float64 {
	hl := bar.High - bar.Low
	if a.count == 0 {
		return hl
	}
	hc := math.Abs(bar.High - a.prevClose)
	lc := math.Abs(bar.Low - a.prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

func (a *ATR) Update(bar model.Bar) {
	a.trs.Update(model.Bar{Close: a.trueRange(bar)})
	a.prevClose = bar.Close
	a.count++
}

func (a *ATR) Value() float64 { return a.trs.Value() }
func (a *ATR) Ready() bool    { return a.trs.Ready() }

// Peek computes what ATR would be with an additional bar without mutating state.
func (a *ATR) Peek(bar model.Bar) float64 {
	return a.trs.Peek(model.Bar{Close: a.trueRange(bar)})
}

// ComputeATR returns the ATR line of bars.
func ComputeATR(bars []model.Bar, period int) Line {
	return Run(NewATR(period), bars)
}

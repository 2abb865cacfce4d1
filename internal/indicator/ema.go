package indicator

import (
	"math"

	"fx-confluence/internal/model"
)

// EMA calculates the Exponential Moving Average of closes.
// Smoothing factor is 2/(period+1); the series is seeded with the first
// close and carries no finite-history adjustment, so it is defined from the
// first bar but only settles after roughly period bars.
// O(1) per update, no window storage.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
		current:    math.NaN(),
	}
}

func (e *EMA) Name() string { return "EMA_" + model.Itoa(e.period) }

func (e *EMA) Update(bar model.Bar) {
	e.current = e.next(bar.Close)
	e.count++
}

func (e *EMA) next(price float64) float64 {
	if e.count == 0 {
		return price
	}
	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	return (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count > 0 }

// Peek computes what Value() would be with an additional bar without mutating state.
func (e *EMA) Peek(bar model.Bar) float64 { return e.next(bar.Close) }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = math.NaN()
	e.count = 0
}

// ComputeEMA returns the EMA line of bars' closes.
func ComputeEMA(bars []model.Bar, period int) Line {
	return Run(NewEMA(period), bars)
}

// Package indicator provides technical indicator calculations over bar data.
//
// Every indicator implements the Indicator interface: it is fed bars one at a
// time and exposes its current value. Undefined values (warm-up) are NaN.
// Run drives an indicator over a whole series and returns an aligned Line.
package indicator

import "fx-confluence/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_50", "ATR_14").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value, NaN while warming up.
	Value() float64

	// Ready returns true once Value is defined.
	Ready() bool

	// Peek computes what Value() would be if bar were fed next,
	// WITHOUT mutating internal state. Used for forming bars.
	Peek(bar model.Bar) float64
}

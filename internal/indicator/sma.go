package indicator

import (
	"math"

	"fx-confluence/internal/model"
)

// SMA calculates Simple Moving Average of closes over a rolling window.
// Uses a preallocated circular buffer for zero-allocation hot path.
// Undefined for the first period-1 bars.
type SMA struct {
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + model.Itoa(s.period) }

func (s *SMA) Update(bar model.Bar) {
	price := bar.Close

	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return math.NaN()
	}
	return s.sum / float64(s.period)
}

func (s *SMA) Ready() bool { return s.count >= s.period }

// Peek computes what Value() would be with an additional bar without mutating state.
func (s *SMA) Peek(bar model.Bar) float64 {
	if s.count+1 < s.period {
		return math.NaN()
	}
	if s.count < s.period {
		return (s.sum + bar.Close) / float64(s.period)
	}
	// Preview: replace the oldest value (at idx) with new price
	return (s.sum - s.buf[s.idx] + bar.Close) / float64(s.period)
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// ComputeSMA returns the SMA line of bars' closes.
func ComputeSMA(bars []model.Bar, period int) Line {
	return Run(NewSMA(period), bars)
}

// ComputeSMAMin is ComputeSMA with a history floor: unless there are at
// least period+pad bars the whole line is undefined rather than partial.
func ComputeSMAMin(bars []model.Bar, period, pad int) Line {
	if len(bars) < period+pad {
		return NaNLine(len(bars))
	}
	return ComputeSMA(bars, period)
}

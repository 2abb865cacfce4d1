package indicator

import "fx-confluence/internal/model"

// CVD is a cumulative-volume-delta proxy: the running sum of candle bodies
// (close - open), weighted by volume when the source carries volume.
// It approximates order flow from bars alone; it is not derived from trades
// or the order book.
type CVD struct {
	weighted bool
	current  float64
	count    int
}

// NewCVD creates a CVD proxy. weighted selects body*volume accumulation.
func NewCVD(weighted bool) *CVD {
	return &CVD{weighted: weighted}
}

func (c *CVD) Name() string { return "CVD" }

// Weighted reports whether volume weighting is active.
func (c *CVD) Weighted() bool { return c.weighted }

func (c *CVD) delta(bar model.Bar) float64 {
	body := bar.Close - bar.Open
	if c.weighted && bar.Volume != nil {
		return body * *bar.Volume
	}
	return body
}

func (c *CVD) Update(bar model.Bar) {
	c.current += c.delta(bar)
	c.count++
}

func (c *CVD) Value() float64 { return c.current }
func (c *CVD) Ready() bool    { return c.count > 0 }

// Peek computes the CVD after one more bar without mutating state.
func (c *CVD) Peek(bar model.Bar) float64 { return c.current + c.delta(bar) }

// ComputeCVD returns the CVD proxy line for s. Weighting is decided once for
// the whole series: volume-weighted only when every bar has volume.
func ComputeCVD(s model.Series) Line {
	return Run(NewCVD(s.HasVolume()), s.Bars)
}

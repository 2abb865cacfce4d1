package confluence

import (
	"time"

	"fx-confluence/internal/model"
)

var t0 = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// seriesOf builds an hourly series; each bar is a doji at its close with a
// fixed high/low spread.
func seriesOf(id string, closes ...float64) model.Series {
	s := model.Series{Instrument: id, Interval: model.Interval1h}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.Bar{
			TS:    t0.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c + 0.0005,
			Low:   c - 0.0005,
			Close: c,
		})
	}
	return s
}

// rising returns n closes starting at from and stepping by step.
func rising(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

// gapUpRed appends n bars that open above the previous close and close
// below their open: price rises while the CVD proxy falls.
func gapUpRed(s model.Series, n int) model.Series {
	last, _ := s.Last()
	prev := last.Close
	for i := 0; i < n; i++ {
		open := prev + 0.002
		cl := prev + 0.001
		s.Bars = append(s.Bars, model.Bar{
			TS:    last.TS.Add(time.Duration(i+1) * time.Hour),
			Open:  open,
			High:  open + 0.0005,
			Low:   cl - 0.0005,
			Close: cl,
		})
		prev = cl
	}
	return s
}

// smallConfig keeps periods short enough for hand-built fixtures.
func smallConfig() Config {
	c := DefaultConfig()
	c.MAPeriods = []int{5, 10}
	c.ZonePeriods = []int{5}
	c.CrossFast, c.CrossSlow = 5, 10
	c.ATRPeriod = 5
	c.ZoneK = 10
	c.DivergenceWindow = 3
	c.MacroFast, c.MacroSlow = 5, 20
	c.MacroMinBars = 20
	return c
}

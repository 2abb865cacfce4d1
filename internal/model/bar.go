package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bar is one OHLCV row for an instrument. Volume is nil when the data source
// does not report it (FX feeds frequently don't).
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *float64  `json:"volume,omitempty"`
}

// HasVolume reports whether the bar carries a volume figure.
func (b *Bar) HasVolume() bool { return b.Volume != nil }

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// Vol returns a pointer suitable for Bar.Volume.
func Vol(v float64) *float64 { return &v }

// Series is an ordered run of bars for one instrument.
// Timestamps must be strictly increasing; gaps are allowed.
type Series struct {
	Instrument string   `json:"instrument"`
	Interval   Interval `json:"interval,omitempty"`
	Bars       []Bar    `json:"bars"`
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Empty reports whether the series has no bars.
func (s *Series) Empty() bool { return len(s.Bars) == 0 }

// Last returns the most recent bar. ok is false for an empty series.
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns a fresh slice of close prices.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i := range s.Bars {
		out[i] = s.Bars[i].Close
	}
	return out
}

// Timestamps returns a fresh slice of bar timestamps.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i := range s.Bars {
		out[i] = s.Bars[i].TS
	}
	return out
}

// HasVolume reports whether every bar carries volume. A series with a single
// bar lacking volume is treated as volume-less as a whole.
func (s *Series) HasVolume() bool {
	if len(s.Bars) == 0 {
		return false
	}
	for i := range s.Bars {
		if s.Bars[i].Volume == nil {
			return false
		}
	}
	return true
}

// CheckOrder verifies timestamps are strictly increasing.
func (s *Series) CheckOrder() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].TS.After(s.Bars[i-1].TS) {
			return fmt.Errorf("%s: bar %d at %s does not follow %s",
				s.Instrument, i, s.Bars[i].TS.Format(time.RFC3339), s.Bars[i-1].TS.Format(time.RFC3339))
		}
	}
	return nil
}

package model

import (
	"fmt"
	"time"
)

// Interval is a bar timeframe label.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Intervals lists the supported timeframes in ascending order.
var Intervals = []Interval{Interval5m, Interval15m, Interval1h, Interval1d}

// ParseInterval validates s as a supported interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	for _, known := range Intervals {
		if iv == known {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported interval %q (want 5m, 15m, 1h or 1d)", s)
}

// Duration returns the bar length.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	}
	return 0
}

// Lookback returns how much history is loaded for this interval.
func (iv Interval) Lookback() time.Duration {
	switch iv {
	case Interval5m:
		return 7 * 24 * time.Hour
	case Interval15m:
		return 60 * 24 * time.Hour
	case Interval1h:
		return 730 * 24 * time.Hour
	case Interval1d:
		return 1825 * 24 * time.Hour
	}
	return 0
}

// Seconds returns the bar length in seconds (0 for unknown intervals).
func (iv Interval) Seconds() int {
	return int(iv.Duration() / time.Second)
}

func (iv Interval) String() string { return string(iv) }

// Package markethours answers whether the spot FX market is trading.
//
// The week runs from Sunday 22:00 UTC to Friday 22:00 UTC. Fixed holidays
// close the whole UTC day.
package markethours

import (
	"fmt"
	"time"
)

// Weekly session boundaries in UTC.
const (
	OpenWeekday  = time.Sunday
	CloseWeekday = time.Friday
	SessionHour  = 22 // open and close both happen at 22:00 UTC
)

// IsMarketOpen returns true if t falls inside the FX trading week and is
// not a holiday.
func IsMarketOpen(t time.Time) bool {
	u := t.UTC()
	if IsHoliday(u) {
		return false
	}
	switch u.Weekday() {
	case time.Saturday:
		return false
	case OpenWeekday:
		return u.Hour() >= SessionHour
	case CloseWeekday:
		return u.Hour() < SessionHour
	}
	return true
}

// NextOpen returns t itself while the market is open, otherwise the next
// moment it opens. Sessions only change state on the hour.
func NextOpen(t time.Time) time.Time {
	return nextState(t, true)
}

// NextClose returns the next moment the market closes, or t while closed.
func NextClose(t time.Time) time.Time {
	return nextState(t, false)
}

func nextState(t time.Time, open bool) time.Time {
	u := t.UTC()
	if IsMarketOpen(u) == open {
		return u
	}
	c := u.Truncate(time.Hour).Add(time.Hour)
	for i := 0; i < 24*14; i++ { // two weeks covers any weekend+holiday run
		if IsMarketOpen(c) == open {
			return c
		}
		c = c.Add(time.Hour)
	}
	return c
}

// TimeUntilClose returns the duration until the next close.
// Returns 0 if market is already closed.
func TimeUntilClose(t time.Time) time.Duration {
	return NextClose(t).Sub(t.UTC())
}

// TimeUntilOpen returns the duration until the next open, 0 while open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t.UTC())
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("FX Open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	return fmt.Sprintf("FX Closed, opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

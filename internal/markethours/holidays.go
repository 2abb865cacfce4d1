package markethours

import "time"

// FX venues close for these UTC calendar days every year.
var fxHolidays = []struct {
	month time.Month
	day   int
}{
	{time.December, 25}, // Christmas
	{time.January, 1},   // New Year
}

// IsHoliday returns true if the UTC date of t is a fixed FX holiday.
func IsHoliday(t time.Time) bool {
	u := t.UTC()
	for _, h := range fxHolidays {
		if u.Month() == h.month && u.Day() == h.day {
			return true
		}
	}
	return false
}

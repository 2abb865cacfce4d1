package notification

import (
	"fmt"
	"sync"

	"fx-confluence/internal/model"
)

// SignalTracker remembers the last suggestion per pair and interval so an
// alert fires only when a pair turns into a new BUY or SELL.
type SignalTracker struct {
	mu   sync.Mutex
	last map[string]model.Suggestion
}

// NewSignalTracker creates an empty tracker.
func NewSignalTracker() *SignalTracker {
	return &SignalTracker{last: make(map[string]model.Suggestion)}
}

// Observe records res and reports whether it warrants an alert.
func (t *SignalTracker) Observe(res model.PairResult) bool {
	key := string(res.Interval) + ":" + res.Pair

	t.mu.Lock()
	prev, seen := t.last[key]
	t.last[key] = res.Suggestion
	t.mu.Unlock()

	if !res.Suggestion.Actionable() {
		return false
	}
	return !seen || prev != res.Suggestion
}

// SignalAlert builds the alert for an actionable pair result.
func SignalAlert(res model.PairResult) Alert {
	yn := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	r := res
	return Alert{
		Level: AlertWarning,
		Title: fmt.Sprintf("%s %s (%s)", res.Pair, res.Suggestion, res.Interval),
		Message: fmt.Sprintf("close %s | SL %s | TP %s | zone=%s cross=%s div=%s usd=%s",
			model.FormatPrice(&r.LastClose), model.FormatPrice(res.StopLoss), model.FormatPrice(res.TakeProfit),
			yn(res.InZone), yn(res.Crossed), res.Divergence, res.MacroBias),
		Result: &r,
	}
}

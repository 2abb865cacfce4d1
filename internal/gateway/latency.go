package gateway

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LagTracker keeps the last N evaluation-to-push delays and reports
// percentiles in milliseconds.
type LagTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
}

// NewLagTracker creates a tracker holding capacity samples.
func NewLagTracker(capacity int) *LagTracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LagTracker{samples: make([]float64, capacity)}
}

// Record adds one sample. Negative delays (clock skew) are dropped.
func (lt *LagTracker) Record(d time.Duration) {
	if d < 0 {
		return
	}
	ms := float64(d.Microseconds()) / 1000.0
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// Percentiles returns p50, p95 and p99 in milliseconds; zeros when empty.
func (lt *LagTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	sorted := make([]float64, lt.count)
	copy(sorted, lt.samples[:lt.count])
	lt.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Count returns the number of samples held.
func (lt *LagTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile linearly interpolates the p-th quantile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

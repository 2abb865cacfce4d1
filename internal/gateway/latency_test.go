package gateway

import (
	"math"
	"testing"
	"time"
)

func TestLagTracker_Empty(t *testing.T) {
	lt := NewLagTracker(100)
	p50, p95, p99 := lt.Percentiles()
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("empty tracker: expected (0,0,0), got (%f,%f,%f)", p50, p95, p99)
	}
}

func TestLagTracker_Percentiles(t *testing.T) {
	lt := NewLagTracker(1000)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	p50, p95, p99 := lt.Percentiles()
	if math.Abs(p50-50.5) > 1e-9 {
		t.Errorf("p50: got %f, want 50.5", p50)
	}
	if math.Abs(p95-95.05) > 1e-9 {
		t.Errorf("p95: got %f, want 95.05", p95)
	}
	if math.Abs(p99-99.01) > 1e-9 {
		t.Errorf("p99: got %f, want 99.01", p99)
	}
}

func TestLagTracker_Wraps(t *testing.T) {
	lt := NewLagTracker(3)
	for _, ms := range []int{100, 1, 2, 3} {
		lt.Record(time.Duration(ms) * time.Millisecond)
	}
	if lt.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", lt.Count())
	}
	if _, _, p99 := lt.Percentiles(); p99 > 3 {
		t.Errorf("evicted sample still counted: p99 = %f", p99)
	}
}

func TestLagTracker_DropsNegative(t *testing.T) {
	lt := NewLagTracker(3)
	lt.Record(-time.Second)
	if lt.Count() != 0 {
		t.Errorf("negative delay recorded")
	}
}

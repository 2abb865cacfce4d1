// Package resample builds higher-timeframe bars from a finer series.
// Bars are folded into UTC-aligned buckets one at a time; a bucket is
// finalized when a bar from a later bucket arrives, or on Flush.
package resample

import (
	"fmt"
	"time"

	"fx-confluence/internal/model"
)

// state is the forming bar of one target interval.
type state struct {
	bucket  int64 // bucket start, Unix seconds
	bar     model.Bar
	volOK   bool // every merged source bar carried volume
	started bool
}

// Builder folds source bars into one or more target intervals.
// Not goroutine-safe; feed it from a single goroutine.
type Builder struct {
	targets []model.Interval
	states  []state

	// OnBar receives each finalized bar. Required.
	OnBar func(iv model.Interval, b model.Bar)
	// OnStale is called when a bar older than the forming bucket is dropped.
	OnStale func(iv model.Interval, b model.Bar)
}

// New creates a builder for source bars of interval src. Every target must
// be a whole multiple of src.
func New(src model.Interval, targets []model.Interval, onBar func(model.Interval, model.Bar)) (*Builder, error) {
	if onBar == nil {
		return nil, fmt.Errorf("resample: OnBar is required")
	}
	sd := src.Duration()
	if sd == 0 {
		return nil, fmt.Errorf("resample: unknown source interval %q", src)
	}
	for _, iv := range targets {
		d := iv.Duration()
		if d == 0 || d <= sd || d%sd != 0 {
			return nil, fmt.Errorf("resample: cannot build %s from %s", iv, src)
		}
	}
	return &Builder{
		targets: targets,
		states:  make([]state, len(targets)),
		OnBar:   onBar,
	}, nil
}

// Add merges one source bar into every target. O(1) per target.
func (b *Builder) Add(bar model.Bar) {
	ts := bar.TS.Unix()
	for i, iv := range b.targets {
		secs := int64(iv.Seconds())
		bucket := ts - mod(ts, secs)
		st := &b.states[i]

		if st.started && bucket < st.bucket {
			if b.OnStale != nil {
				b.OnStale(iv, bar)
			}
			continue
		}
		if st.started && bucket > st.bucket {
			b.emit(iv, st)
		}
		if !st.started {
			*st = state{
				bucket:  bucket,
				started: true,
				volOK:   bar.Volume != nil,
				bar: model.Bar{
					TS:   time.Unix(bucket, 0).UTC(),
					Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close,
				},
			}
			if bar.Volume != nil {
				st.bar.Volume = model.Vol(*bar.Volume)
			}
			continue
		}

		fb := &st.bar
		if bar.High > fb.High {
			fb.High = bar.High
		}
		if bar.Low < fb.Low {
			fb.Low = bar.Low
		}
		fb.Close = bar.Close
		if bar.Volume == nil {
			st.volOK = false
		} else if st.volOK {
			*fb.Volume += *bar.Volume
		}
	}
}

// Flush finalizes every forming bar, including incomplete trailing buckets.
func (b *Builder) Flush() {
	for i, iv := range b.targets {
		if b.states[i].started {
			b.emit(iv, &b.states[i])
		}
	}
}

func (b *Builder) emit(iv model.Interval, st *state) {
	out := st.bar
	if !st.volOK {
		out.Volume = nil
	}
	st.started = false
	b.OnBar(iv, out)
}

// Bars resamples an ordered slice of src bars into each target interval.
func Bars(src model.Interval, targets []model.Interval, bars []model.Bar) (map[model.Interval][]model.Bar, error) {
	out := make(map[model.Interval][]model.Bar, len(targets))
	b, err := New(src, targets, func(iv model.Interval, bar model.Bar) {
		out[iv] = append(out[iv], bar)
	})
	if err != nil {
		return nil, err
	}
	for _, bar := range bars {
		b.Add(bar)
	}
	b.Flush()
	return out, nil
}

// mod is a floor modulo so pre-1970 timestamps align to the same grid.
func mod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

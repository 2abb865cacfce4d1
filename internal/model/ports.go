package model

import (
	"context"
	"errors"
	"time"
)

// ── Storage Port Interfaces ──
// These decouple the signal service from concrete storage (SQLite, Redis).

// BarReader loads stored bar history.
type BarReader interface {
	// ReadBars returns bars for instrument/interval with TS >= from, ascending.
	ReadBars(ctx context.Context, instrument string, iv Interval, from time.Time) (Series, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter stores bar history.
type BarWriter interface {
	// WriteBars upserts bars keyed by (instrument, interval, ts).
	WriteBars(ctx context.Context, instrument string, iv Interval, bars []Bar) (int, error)

	// Close releases underlying resources.
	Close() error
}

// ResultPublisher fans evaluation results out to downstream consumers.
type ResultPublisher interface {
	PublishResults(ctx context.Context, macro MacroResult, pairs []PairResult) error
}

// Publishers sends results to every publisher in turn. A failing sink does
// not stop the others; their errors are joined.
type Publishers []ResultPublisher

func (ps Publishers) PublishResults(ctx context.Context, macro MacroResult, pairs []PairResult) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishResults(ctx, macro, pairs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

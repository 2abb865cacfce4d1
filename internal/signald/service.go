// Package signald runs the scheduled confluence evaluation: load bars,
// evaluate, then publish, broadcast and alert.
package signald

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fx-confluence/internal/confluence"
	"fx-confluence/internal/logger"
	"fx-confluence/internal/markethours"
	"fx-confluence/internal/metrics"
	"fx-confluence/internal/model"
	"fx-confluence/internal/notification"
)

// Broadcaster pushes a finished report to live subscribers.
type Broadcaster interface {
	BroadcastReport(rep *confluence.Report)
}

// ErrorReporter forwards failed runs to an error tracker.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// Options controls scheduling.
type Options struct {
	Intervals []model.Interval
	Period    time.Duration
	// MarketHoursGate skips scheduled runs while the FX market is closed.
	MarketHoursGate bool
}

// Deps are the collaborators of a Service. Only Engine and Bars are
// required.
type Deps struct {
	Engine      *confluence.Engine
	Bars        model.BarReader
	Publisher   model.ResultPublisher
	Broadcaster Broadcaster
	Notifier    notification.Notifier
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
	Errors      ErrorReporter
}

// Service is the evaluation scheduler.
type Service struct {
	opts Options
	deps Deps

	tracker *notification.SignalTracker

	mu   sync.RWMutex
	last map[model.Interval]*confluence.Report

	now func() time.Time
}

// New validates opts and deps and returns an idle service.
func New(opts Options, deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Bars == nil {
		return nil, errors.New("signald: engine and bar reader are required")
	}
	if len(opts.Intervals) == 0 {
		return nil, errors.New("signald: no intervals configured")
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("signald: period must be positive, got %s", opts.Period)
	}
	if deps.Health != nil {
		deps.Health.SetIntervals(opts.Intervals)
	}
	return &Service{
		opts:    opts,
		deps:    deps,
		tracker: notification.NewSignalTracker(),
		last:    make(map[model.Interval]*confluence.Report),
		now:     time.Now,
	}, nil
}

// Run evaluates immediately and then every Period until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Printf("[signald] evaluating %v every %s (market-hours gate: %v)",
		s.opts.Intervals, s.opts.Period, s.opts.MarketHoursGate)

	s.Tick(ctx)

	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[signald] stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled round over every interval, unless the market
// gate is on and the FX market is closed.
func (s *Service) Tick(ctx context.Context) {
	now := s.now()
	open := markethours.IsMarketOpen(now)
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetMarketOpen(open)
	}
	if s.deps.Health != nil {
		s.deps.Health.SetMarketOpen(open)
	}
	if s.opts.MarketHoursGate && !open {
		if s.deps.Metrics != nil {
			s.deps.Metrics.ClosedMarketSkips.Inc()
		}
		log.Printf("[signald] skipping run: %s", markethours.StatusString(now))
		return
	}

	for _, iv := range s.opts.Intervals {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunOnce(ctx, iv); err != nil && ctx.Err() == nil {
			log.Printf("[signald] %s evaluation failed: %v", iv, err)
		}
	}
}

// RunOnce loads bars for iv, evaluates them and delivers the report.
// Delivery failures (Redis, alerts) are logged but do not fail the run.
func (s *Service) RunOnce(ctx context.Context, iv model.Interval) (*confluence.Report, error) {
	now := s.now().UTC()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("eval-"+string(iv), now))

	rep, err := s.evaluate(ctx, iv, now)
	if s.deps.Health != nil {
		s.deps.Health.RecordEval(now, err)
	}
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.EvaluationErrors.Inc()
		}
		if s.deps.Errors != nil {
			s.deps.Errors.CaptureError(ctx, err, map[string]string{"interval": string(iv)})
		}
		return nil, err
	}

	s.mu.Lock()
	s.last[iv] = rep
	s.mu.Unlock()

	s.publish(ctx, rep)
	if s.deps.Broadcaster != nil {
		s.deps.Broadcaster.BroadcastReport(rep)
	}
	s.alert(ctx, rep)

	attrs := append(logger.LogWithTrace(ctx),
		"run_id", rep.RunID,
		"interval", string(iv),
		"bias", string(rep.Macro.Result.Bias),
		"pairs", len(rep.Pairs),
		"skipped", len(rep.Skipped),
	)
	slog.Info("evaluation complete", attrs...)
	return rep, nil
}

func (s *Service) evaluate(ctx context.Context, iv model.Interval, now time.Time) (*confluence.Report, error) {
	cfg := s.deps.Engine.Config()
	from := now.Add(-iv.Lookback())

	loadStart := time.Now()
	ref, err := s.deps.Bars.ReadBars(ctx, cfg.Reference, iv, from)
	if err != nil {
		return nil, fmt.Errorf("load reference %s: %w", cfg.Reference, err)
	}
	series := make(map[string]model.Series, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		key := p.Key()
		ps, err := s.deps.Bars.ReadBars(ctx, key, iv, from)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		series[key] = ps
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SQLiteReadDur.Observe(time.Since(loadStart).Seconds())
	}

	evalStart := time.Now()
	rep, err := s.deps.Engine.Evaluate(ctx, ref, series)
	if err != nil {
		return nil, err
	}
	rep.RunID = uuid.NewString()
	rep.Interval = iv
	rep.EvaluatedAt = now
	for i := range rep.Pairs {
		rep.Pairs[i].Result.Interval = iv
	}
	rep.Macro.Result.Interval = iv

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveReport(rep, time.Since(evalStart))
	}
	return rep, nil
}

func (s *Service) publish(ctx context.Context, rep *confluence.Report) {
	if s.deps.Publisher == nil {
		return
	}
	start := time.Now()
	err := s.deps.Publisher.PublishResults(ctx, rep.Macro.Result, rep.Results())
	if s.deps.Metrics != nil {
		s.deps.Metrics.PublishDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		attrs := append(logger.LogWithTrace(ctx), "error", err)
		slog.Warn("publish results failed", attrs...)
	}
}

func (s *Service) alert(ctx context.Context, rep *confluence.Report) {
	for i := range rep.Pairs {
		res := rep.Pairs[i].Result
		if !s.tracker.Observe(res) || s.deps.Notifier == nil {
			continue
		}
		result := "sent"
		if err := s.deps.Notifier.Send(ctx, notification.SignalAlert(res)); err != nil {
			result = "failed"
			attrs := append(logger.LogWithTrace(ctx), "pair", res.Pair, "error", err)
			slog.Warn("signal alert failed", attrs...)
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.AlertsTotal.WithLabelValues(result).Inc()
		}
	}
}

// LastReport returns the newest report of the first configured interval,
// or nil before it has been evaluated.
func (s *Service) LastReport() *confluence.Report {
	return s.ReportFor(s.opts.Intervals[0])
}

// ReportFor returns the newest report for iv, or nil.
func (s *Service) ReportFor(iv model.Interval) *confluence.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last[iv]
}

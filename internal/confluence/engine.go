// Package confluence classifies currency pairs from bar series.
//
// For every pair the engine computes moving averages, ATR and a CVD proxy,
// runs the zone, crossover and divergence detectors, combines them with the
// macro USD bias from a reference index and attaches symmetric risk levels.
// All functions are pure: inputs are never mutated and no state survives a
// call.
package confluence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fx-confluence/internal/indicator"
	"fx-confluence/internal/model"
)

// Engine evaluates pairs under one validated Config.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns a copy of the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// PairReport is one pair's classification plus every indicator line, keyed
// by name (MA_600, ATR, CVD) and aligned with Timestamps.
type PairReport struct {
	Result     model.PairResult          `json:"result"`
	Timestamps []time.Time               `json:"timestamps"`
	Indicators map[string]indicator.Line `json:"indicators"`
}

// Skip records a pair that could not be evaluated.
type Skip struct {
	Pair   string `json:"pair"`
	Reason string `json:"reason"`
}

// Skip reasons.
const (
	SkipMissing   = "missing"
	SkipEmpty     = "empty"
	SkipUnordered = "unordered"
)

// Report is the outcome of one full evaluation.
type Report struct {
	// RunID identifies one scheduled evaluation; empty for ad hoc calls.
	RunID       string         `json:"run_id,omitempty"`
	Interval    model.Interval `json:"interval,omitempty"`
	// EvaluatedAt is stamped by the caller; the engine leaves it zero.
	EvaluatedAt time.Time      `json:"evaluated_at"`
	Macro       MacroReport    `json:"macro"`
	Pairs       []PairReport   `json:"pairs"`
	Skipped     []Skip         `json:"skipped,omitempty"`
}

// Results returns the bare per-pair result records in config order.
func (r *Report) Results() []model.PairResult {
	out := make([]model.PairResult, len(r.Pairs))
	for i := range r.Pairs {
		out[i] = r.Pairs[i].Result
	}
	return out
}

func checkSeries(s model.Series) error {
	if s.Empty() {
		return ErrEmptySeries
	}
	if err := s.CheckOrder(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnorderedSeries, err)
	}
	return nil
}

// EvaluatePair runs the full pipeline for one pair under the given bias.
func (e *Engine) EvaluatePair(pair model.Pair, s model.Series, bias model.MacroBias) (PairReport, error) {
	if err := checkSeries(s); err != nil {
		return PairReport{}, fmt.Errorf("pair %s: %w", pair.Key(), err)
	}
	c := &e.cfg
	closes := s.Closes()

	lines := make(map[string]indicator.Line, len(c.MAPeriods)+4)
	for _, p := range c.SMAPeriods() {
		lines[maName(p)] = indicator.ComputeSMAMin(s.Bars, p, c.SMAMinPad)
	}
	atrLine := indicator.ComputeATR(s.Bars, c.ATRPeriod)
	lines["ATR"] = atrLine
	lines["CVD"] = indicator.ComputeCVD(s)
	atr, _ := atrLine.Last()

	zoneMAs := make([]indicator.Line, 0, len(c.ZonePeriods))
	for _, p := range c.ZonePeriods {
		zoneMAs = append(zoneMAs, lines[maName(p)])
	}

	in := Inputs{
		HasZone:    AnyInZone(closes, zoneMAs, atr, c.ZoneK),
		Crossed:    Crossed(lines[maName(c.CrossFast)], lines[maName(c.CrossSlow)], c.CrossoverLookback),
		Divergence: Divergence(closes, lines["CVD"], c.DivergenceWindow),
		Bias:       bias,
		Inverted:   pair.Inverted,
	}

	last, _ := s.Last()
	res := model.PairResult{
		Pair:       pair.Key(),
		Interval:   s.Interval,
		TS:         last.TS,
		InZone:     in.HasZone,
		Crossed:    in.Crossed,
		Divergence: in.Divergence,
		MacroBias:  bias,
		Suggestion: Classify(in),
		LastClose:  last.Close,
		ATR:        model.Float(atr),
	}
	if r, ok := CalculateRisk(closes, atr, c.RiskATRMult); ok {
		res.StopLoss = model.Float(r.StopLoss)
		res.TakeProfit = model.Float(r.TakeProfit)
	}

	return PairReport{Result: res, Timestamps: s.Timestamps(), Indicators: lines}, nil
}

// Evaluate derives the macro bias from ref and classifies every configured
// pair found in series (keyed by pair ID) in parallel. Pairs without a
// usable series are listed in Report.Skipped; only a bad reference series
// or a cancelled ctx fail the whole call.
func (e *Engine) Evaluate(ctx context.Context, ref model.Series, series map[string]model.Series) (*Report, error) {
	macro, err := e.EvaluateMacro(ref)
	if err != nil {
		return nil, err
	}
	bias := macro.Result.Bias

	pairs := e.cfg.Pairs
	reports := make([]PairReport, len(pairs))
	skips := make([]string, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i := range pairs {
		i, pair := i, pairs[i]
		s, ok := lookup(series, pair)
		if !ok {
			skips[i] = SkipMissing
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := e.EvaluatePair(pair, s, bias)
			switch {
			case errors.Is(err, ErrEmptySeries):
				skips[i] = SkipEmpty
			case errors.Is(err, ErrUnorderedSeries):
				skips[i] = SkipUnordered
			case err != nil:
				return err
			default:
				reports[i] = rep
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Report{Interval: ref.Interval, Macro: macro}
	for i := range pairs {
		if skips[i] != "" {
			out.Skipped = append(out.Skipped, Skip{Pair: pairs[i].Key(), Reason: skips[i]})
			continue
		}
		out.Pairs = append(out.Pairs, reports[i])
	}
	return out, nil
}

func lookup(series map[string]model.Series, pair model.Pair) (model.Series, bool) {
	if s, ok := series[pair.Key()]; ok {
		return s, true
	}
	s, ok := series[pair.ID]
	return s, ok
}

func maName(period int) string { return "MA_" + model.Itoa(period) }

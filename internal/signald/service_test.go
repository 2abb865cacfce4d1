package signald

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-confluence/internal/confluence"
	"fx-confluence/internal/metrics"
	"fx-confluence/internal/model"
	"fx-confluence/internal/notification"
)

var t0 = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // Monday

// ── fakes ──

type memBars struct {
	series map[string]model.Series
	err    error
	reads  int
}

func (m *memBars) ReadBars(ctx context.Context, instrument string, iv model.Interval, from time.Time) (model.Series, error) {
	m.reads++
	if m.err != nil {
		return model.Series{}, m.err
	}
	out := model.Series{Instrument: instrument, Interval: iv}
	for _, b := range m.series[instrument].Bars {
		if !b.TS.Before(from) {
			out.Bars = append(out.Bars, b)
		}
	}
	return out, nil
}

func (m *memBars) Close() error { return nil }

type recordingPublisher struct {
	macro []model.MacroResult
	pairs [][]model.PairResult
	err   error
}

func (p *recordingPublisher) PublishResults(ctx context.Context, macro model.MacroResult, pairs []model.PairResult) error {
	p.macro = append(p.macro, macro)
	p.pairs = append(p.pairs, pairs)
	return p.err
}

type recordingBroadcaster struct{ reports []*confluence.Report }

func (b *recordingBroadcaster) BroadcastReport(rep *confluence.Report) {
	b.reports = append(b.reports, rep)
}

type recordingErrors struct {
	errs []error
	tags []map[string]string
}

func (r *recordingErrors) CaptureError(ctx context.Context, err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
	err    error
}

func (n *recordingNotifier) Send(ctx context.Context, a notification.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

// ── fixtures ──

func hourly(id string, closes []float64) model.Series {
	s := model.Series{Instrument: id, Interval: model.Interval1h}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.Bar{
			TS: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.0005, Low: c - 0.0005, Close: c,
		})
	}
	return s
}

// bearish is flat then five gap-up red candles: in zone with bearish
// divergence.
func bearish(id string) model.Series {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 1.1
	}
	s := hourly(id, closes)
	last, _ := s.Last()
	prev := last.Close
	for i := 0; i < 5; i++ {
		open, cl := prev+0.002, prev+0.001
		s.Bars = append(s.Bars, model.Bar{
			TS: last.TS.Add(time.Duration(i+1) * time.Hour), Open: open, High: open + 0.0005, Low: cl - 0.0005, Close: cl,
		})
		prev = cl
	}
	return s
}

func strongDXY() model.Series {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	return hourly("DXY", closes)
}

func engineConfig() confluence.Config {
	c := confluence.DefaultConfig()
	c.MAPeriods = []int{5, 10}
	c.ZonePeriods = []int{5}
	c.CrossFast, c.CrossSlow = 5, 10
	c.ATRPeriod = 5
	c.ZoneK = 10
	c.DivergenceWindow = 3
	c.MacroFast, c.MacroSlow = 5, 20
	c.MacroMinBars = 20
	c.Pairs = []model.Pair{{ID: "EURUSD"}, {ID: "USDCHF", Inverted: true}, {ID: "GBPUSD"}}
	return c
}

type harness struct {
	svc    *Service
	bars   *memBars
	pub    *recordingPublisher
	bcast  *recordingBroadcaster
	notify *recordingNotifier
	errs   *recordingErrors
	prom   *metrics.Metrics
	health *metrics.HealthStatus
}

func newHarness(t *testing.T, gate bool, now time.Time) *harness {
	t.Helper()
	eng, err := confluence.NewEngine(engineConfig())
	require.NoError(t, err)

	h := &harness{
		bars: &memBars{series: map[string]model.Series{
			"DXY":    strongDXY(),
			"EURUSD": bearish("EURUSD"),
			"USDCHF": bearish("USDCHF"),
		}},
		pub:    &recordingPublisher{},
		bcast:  &recordingBroadcaster{},
		notify: &recordingNotifier{},
		errs:   &recordingErrors{},
		prom:   metrics.NewMetrics(prometheus.NewRegistry()),
		health: metrics.NewHealthStatus(),
	}
	h.svc, err = New(
		Options{Intervals: []model.Interval{model.Interval1h}, Period: time.Minute, MarketHoursGate: gate},
		Deps{
			Engine:      eng,
			Bars:        h.bars,
			Publisher:   h.pub,
			Broadcaster: h.bcast,
			Notifier:    h.notify,
			Metrics:     h.prom,
			Health:      h.health,
			Errors:      h.errs,
		},
	)
	require.NoError(t, err)
	h.svc.now = func() time.Time { return now }
	return h
}

// Thursday 00:00 UTC, inside the FX week and after every fixture bar.
var openNow = t0.Add(72 * time.Hour)

// ── tests ──

func TestNew_Validation(t *testing.T) {
	eng, err := confluence.NewEngine(engineConfig())
	require.NoError(t, err)
	bars := &memBars{}
	ivs := []model.Interval{model.Interval1h}

	_, err = New(Options{Intervals: ivs, Period: time.Minute}, Deps{Bars: bars})
	assert.Error(t, err)
	_, err = New(Options{Period: time.Minute}, Deps{Engine: eng, Bars: bars})
	assert.Error(t, err)
	_, err = New(Options{Intervals: ivs}, Deps{Engine: eng, Bars: bars})
	assert.Error(t, err)
	_, err = New(Options{Intervals: ivs, Period: time.Minute}, Deps{Engine: eng, Bars: bars})
	assert.NoError(t, err)
}

func TestRunOnce_DeliversReport(t *testing.T) {
	h := newHarness(t, true, openNow)
	assert.Nil(t, h.svc.LastReport())

	rep, err := h.svc.RunOnce(context.Background(), model.Interval1h)
	require.NoError(t, err)

	assert.Equal(t, model.Interval1h, rep.Interval)
	assert.Equal(t, openNow.UTC(), rep.EvaluatedAt)
	assert.Len(t, rep.RunID, 36)
	assert.Equal(t, model.MacroStrong, rep.Macro.Result.Bias)
	require.Len(t, rep.Pairs, 2)
	assert.Equal(t, model.SuggestSell, rep.Pairs[0].Result.Suggestion)
	assert.Equal(t, model.SuggestBuy, rep.Pairs[1].Result.Suggestion)
	assert.Equal(t, []confluence.Skip{{Pair: "GBPUSD", Reason: confluence.SkipEmpty}}, rep.Skipped)
	assert.Same(t, rep, h.svc.LastReport())

	// Reference plus one read per configured pair.
	assert.Equal(t, 4, h.bars.reads)

	require.Len(t, h.pub.pairs, 1)
	assert.Len(t, h.pub.pairs[0], 2)
	assert.Equal(t, model.Interval1h, h.pub.macro[0].Interval)

	require.Len(t, h.bcast.reports, 1)
	assert.Same(t, rep, h.bcast.reports[0])

	require.Len(t, h.notify.alerts, 2)
	assert.Equal(t, "EURUSD SELL (1h)", h.notify.alerts[0].Title)
	assert.Equal(t, "USDCHF BUY (1h)", h.notify.alerts[1].Title)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.prom.EvaluationsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.prom.AlertsTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.prom.PairsSkipped.WithLabelValues(confluence.SkipEmpty)))
	assert.Equal(t, openNow.UTC(), h.health.LastEvalAt)
	assert.Empty(t, h.health.LastEvalError)
}

func TestRunOnce_AlertsOnlyOnChange(t *testing.T) {
	h := newHarness(t, true, openNow)
	ctx := context.Background()

	first, err := h.svc.RunOnce(ctx, model.Interval1h)
	require.NoError(t, err)
	second, err := h.svc.RunOnce(ctx, model.Interval1h)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Len(t, h.notify.alerts, 2, "unchanged suggestions must not re-alert")
	assert.Len(t, h.pub.pairs, 2, "every run still publishes")
}

func TestRunOnce_ReferenceMissing(t *testing.T) {
	h := newHarness(t, true, openNow)
	delete(h.bars.series, "DXY")

	_, err := h.svc.RunOnce(context.Background(), model.Interval1h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, confluence.ErrEmptySeries))

	assert.Nil(t, h.svc.LastReport())
	assert.Empty(t, h.pub.pairs)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.prom.EvaluationErrors))
	assert.NotEmpty(t, h.health.LastEvalError)

	require.Len(t, h.errs.errs, 1)
	assert.ErrorIs(t, h.errs.errs[0], confluence.ErrEmptySeries)
	assert.Equal(t, map[string]string{"interval": "1h"}, h.errs.tags[0])
}

func TestRunOnce_StorageError(t *testing.T) {
	h := newHarness(t, true, openNow)
	h.bars.err = errors.New("disk gone")

	_, err := h.svc.RunOnce(context.Background(), model.Interval1h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load reference DXY")
}

func TestRunOnce_DeliveryFailuresDoNotFailRun(t *testing.T) {
	h := newHarness(t, true, openNow)
	h.pub.err = errors.New("redis down")
	h.notify.err = errors.New("webhook 500")

	rep, err := h.svc.RunOnce(context.Background(), model.Interval1h)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Len(t, h.bcast.reports, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.prom.AlertsTotal.WithLabelValues("failed")))
}

func TestTick_MarketGate(t *testing.T) {
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

	h := newHarness(t, true, saturday)
	h.svc.Tick(context.Background())
	assert.Zero(t, h.bars.reads)
	assert.Nil(t, h.svc.LastReport())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.prom.ClosedMarketSkips))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.prom.MarketState))

	ungated := newHarness(t, false, saturday)
	ungated.svc.Tick(context.Background())
	assert.NotNil(t, ungated.svc.LastReport())
	assert.Equal(t, 0.0, testutil.ToFloat64(ungated.prom.ClosedMarketSkips))
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, true, openNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Nil(t, h.svc.LastReport())
}

package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fx-confluence/internal/breaker"
	"fx-confluence/internal/confluence"
	"fx-confluence/internal/model"
)

// Metrics holds all Prometheus metrics for the signal service.
type Metrics struct {
	EvaluationsTotal prometheus.Counter
	EvaluationErrors prometheus.Counter
	EvaluateDur      prometheus.Histogram
	SuggestionsTotal *prometheus.CounterVec // labels: pair, suggestion
	PairsSkipped     *prometheus.CounterVec // labels: reason
	MacroStrong      *prometheus.GaugeVec   // labels: interval; 1=strong, 0=weak

	// Storage
	SQLiteReadDur prometheus.Histogram
	PublishDur    prometheus.Histogram // all result sinks of one run

	// Circuit breakers, labelled by sink (redis, kafka)
	BreakerState *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec

	// Delivery
	AlertsTotal *prometheus.CounterVec // labels: result=sent|failed
	WSClients   prometheus.Gauge

	// Market session
	MarketState       prometheus.Gauge // 0=closed, 1=open
	ClosedMarketSkips prometheus.Counter
}

// NewMetrics creates all metrics and registers them on reg
// (prometheus.DefaultRegisterer in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_evaluations_total",
			Help: "Completed evaluation runs",
		}),
		EvaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_evaluation_errors_total",
			Help: "Evaluation runs that failed (load, reference or cancel)",
		}),
		EvaluateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_evaluate_duration_seconds",
			Help:    "Engine evaluation latency per run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SuggestionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_suggestions_total",
			Help: "Suggestions produced, by pair and label",
		}, []string{"pair", "suggestion"}),
		PairsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_pairs_skipped_total",
			Help: "Pairs not evaluated, by reason",
		}, []string{"reason"}),
		MacroStrong: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confluence_macro_strong",
			Help: "USD macro bias (1=strong, 0=weak)",
		}, []string{"interval"}),

		SQLiteReadDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_sqlite_read_duration_seconds",
			Help:    "Bar history load latency per run",
			Buckets: prometheus.DefBuckets,
		}),
		PublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_publish_duration_seconds",
			Help:    "Result publish latency across all sinks",
			Buckets: prometheus.DefBuckets,
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confluence_sink_breaker_state",
			Help: "Result sink circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"sink"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_sink_breaker_trips_total",
			Help: "Times a result sink circuit breaker tripped open",
		}, []string{"sink"}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_alerts_total",
			Help: "Signal alerts by delivery result",
		}, []string{"result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_ws_clients",
			Help: "Connected websocket clients",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_market_state",
			Help: "FX session state (0=closed, 1=open)",
		}),
		ClosedMarketSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_closed_market_skips_total",
			Help: "Scheduled runs skipped because the FX market was closed",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationErrors,
		m.EvaluateDur,
		m.SuggestionsTotal,
		m.PairsSkipped,
		m.MacroStrong,
		m.SQLiteReadDur,
		m.PublishDur,
		m.BreakerState,
		m.BreakerTrips,
		m.AlertsTotal,
		m.WSClients,
		m.MarketState,
		m.ClosedMarketSkips,
	)

	return m
}

// ObserveReport records one completed run.
func (m *Metrics) ObserveReport(rep *confluence.Report, dur time.Duration) {
	m.EvaluationsTotal.Inc()
	m.EvaluateDur.Observe(dur.Seconds())

	strong := 0.0
	if rep.Macro.Result.Bias == model.MacroStrong {
		strong = 1
	}
	m.MacroStrong.WithLabelValues(string(rep.Interval)).Set(strong)

	for i := range rep.Pairs {
		r := &rep.Pairs[i].Result
		m.SuggestionsTotal.WithLabelValues(r.Pair, string(r.Suggestion)).Inc()
	}
	for _, s := range rep.Skipped {
		m.PairsSkipped.WithLabelValues(s.Reason).Inc()
	}
}

// ObserveBreaker is a breaker.Breaker OnStateChange hook.
func (m *Metrics) ObserveBreaker(sink string, from, to breaker.State) {
	m.BreakerState.WithLabelValues(sink).Set(float64(to))
	if to == breaker.Open {
		m.BreakerTrips.WithLabelValues(sink).Inc()
	}
	log.Printf("[%s] circuit breaker %s -> %s", sink, from, to)
}

// SetMarketOpen records the FX session state.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketState.Set(1)
		return
	}
	m.MarketState.Set(0)
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	MarketOpen     bool      `json:"market_open"`
	LastEvalAt     time.Time `json:"last_eval_at"`
	LastEvalError  string    `json:"last_eval_error"`
	Intervals      []string  `json:"intervals"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetIntervals(ivs []model.Interval) {
	out := make([]string, len(ivs))
	for i, iv := range ivs {
		out[i] = string(iv)
	}
	h.mu.Lock()
	h.Intervals = out
	h.mu.Unlock()
}

// RecordEval stores the outcome of the latest evaluation run.
func (h *HealthStatus) RecordEval(at time.Time, err error) {
	h.mu.Lock()
	h.LastEvalAt = at
	h.LastEvalError = ""
	if err != nil {
		h.LastEvalError = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.RedisConnected || !h.SQLiteOK || h.LastEvalError != "" {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && !h.RedisConnected {
		overallStatus = "unhealthy"
	}

	evalAge := ""
	if !h.LastEvalAt.IsZero() {
		evalAge = time.Since(h.LastEvalAt).Round(time.Second).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		MarketOpen      bool     `json:"market_open"`
		LastEvalAt      string   `json:"last_eval_at"`
		EvalAge         string   `json:"eval_age"`
		LastEvalError   string   `json:"last_eval_error,omitempty"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Intervals       []string `json:"intervals"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		MarketOpen:      h.MarketOpen,
		LastEvalAt:      h.LastEvalAt.Format(time.RFC3339),
		EvalAge:         evalAge,
		LastEvalError:   h.LastEvalError,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Intervals:       h.Intervals,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

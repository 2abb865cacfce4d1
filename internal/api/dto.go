package api

import (
	"strings"
	"time"

	"fx-confluence/internal/confluence"
	"fx-confluence/internal/model"
)

// EvaluateRequest is the body of POST /api/v1/evaluate. Config fields left
// out of the body take their defaults.
type EvaluateRequest struct {
	Interval  string                 `json:"interval" default:"1h" validate:"oneof=5m 15m 1h 1d"`
	Config    confluence.Config      `json:"config"`
	Reference SeriesInput            `json:"reference"`
	Pairs     map[string]SeriesInput `json:"pairs" validate:"required,min=1,dive"`
}

// MaxSeriesBars is the most bars accepted per instrument.
const MaxSeriesBars = 20000

// SeriesInput is one instrument's bars, oldest first.
type SeriesInput struct {
	Bars []BarInput `json:"bars" validate:"max=20000,dive"`
}

// BarInput is one OHLCV row.
type BarInput struct {
	TS     time.Time `json:"ts" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume *float64  `json:"volume" validate:"omitempty,gte=0"`
}

func (in SeriesInput) series(instrument string, iv model.Interval) model.Series {
	bars := make([]model.Bar, len(in.Bars))
	for i, b := range in.Bars {
		bars[i] = model.Bar{
			TS:     b.TS.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return model.Series{Instrument: strings.ToUpper(instrument), Interval: iv, Bars: bars}
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status          string     `json:"status"`
	MarketOpen      bool       `json:"market_open"`
	MarketStatus    string     `json:"market_status"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	WSClients       int        `json:"ws_clients"`
	PushLagP50Ms    float64    `json:"push_lag_p50_ms"`
	PushLagP95Ms    float64    `json:"push_lag_p95_ms"`
	PushLagP99Ms    float64    `json:"push_lag_p99_ms"`
}

package model

import (
	"encoding/json"
	"time"
)

// Suggestion is the final per-pair trade label.
type Suggestion string

const (
	SuggestBuy               Suggestion = "BUY"
	SuggestSell              Suggestion = "SELL"
	SuggestNoTrade           Suggestion = "NO_TRADE"
	SuggestAwaitConfirmation Suggestion = "AWAIT_CONFIRMATION"
	SuggestAwaitZone         Suggestion = "AWAIT_ZONE"
)

// Actionable reports whether the suggestion is a trade direction.
func (s Suggestion) Actionable() bool {
	return s == SuggestBuy || s == SuggestSell
}

// Divergence classifies price vs CVD-proxy displacement.
type Divergence string

const (
	DivergenceNone    Divergence = "none"
	DivergenceBullish Divergence = "bullish"
	DivergenceBearish Divergence = "bearish"
)

// MacroBias is the USD-strength filter derived from the reference index.
type MacroBias string

const (
	MacroStrong MacroBias = "strong"
	MacroWeak   MacroBias = "weak"
)

// Advice returns the human-readable trading preference for the bias.
func (b MacroBias) Advice() string {
	if b == MacroStrong {
		return "USD strong: prefer selling EUR/GBP/AUD, buying USDCHF"
	}
	return "USD weak: prefer buying EUR/GBP/AUD, selling USDCHF"
}

// PairResult is the classification record for one pair at one evaluation.
// StopLoss and TakeProfit are nil when risk levels are absent.
type PairResult struct {
	Pair       string     `json:"pair"`
	Interval   Interval   `json:"interval,omitempty"`
	TS         time.Time  `json:"ts"` // timestamp of the last bar evaluated
	InZone     bool       `json:"in_zone"`
	Crossed    bool       `json:"crossed"`
	Divergence Divergence `json:"divergence"`
	MacroBias  MacroBias  `json:"macro_bias"`
	Suggestion Suggestion `json:"suggestion"`
	LastClose  float64    `json:"last_close"`
	ATR        *float64   `json:"atr"`
	StopLoss   *float64   `json:"stop_loss"`
	TakeProfit *float64   `json:"take_profit"`
}

// JSON returns the JSON-encoded result.
func (r *PairResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// MacroResult is the reference-instrument outcome.
type MacroResult struct {
	Reference string    `json:"reference"`
	Interval  Interval  `json:"interval,omitempty"`
	TS        time.Time `json:"ts"`
	Bias      MacroBias `json:"bias"`
	EMAFast   *float64  `json:"ema_fast"`
	EMASlow   *float64  `json:"ema_slow"`
	// Mature is false when the reference history is shorter than the
	// configured minimum, which is never below the slow EMA period; the
	// bias is then forced to weak.
	Mature bool   `json:"mature"`
	Advice string `json:"advice"`
}

// JSON returns the JSON-encoded macro result.
func (m *MacroResult) JSON() []byte {
	b, _ := json.Marshal(m)
	return b
}

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"fx-confluence/internal/model"
)

func sellEUR() model.PairResult {
	return model.PairResult{
		Pair:       "EURUSD",
		Interval:   model.Interval1h,
		InZone:     true,
		Divergence: model.DivergenceBearish,
		MacroBias:  model.MacroStrong,
		Suggestion: model.SuggestSell,
		LastClose:  1.105,
		ATR:        model.Float(0.0025),
		StopLoss:   model.Float(1.1),
		TakeProfit: model.Float(1.11),
	}
}

func TestSignalTracker_AlertsOnChangeToActionable(t *testing.T) {
	tr := NewSignalTracker()
	res := sellEUR()

	assert.True(t, tr.Observe(res), "first SELL alerts")
	assert.False(t, tr.Observe(res), "repeat SELL is silent")

	res.Suggestion = model.SuggestAwaitZone
	assert.False(t, tr.Observe(res), "non-actionable never alerts")

	res.Suggestion = model.SuggestSell
	assert.True(t, tr.Observe(res), "SELL again after a gap alerts")

	res.Suggestion = model.SuggestBuy
	assert.True(t, tr.Observe(res), "direction flip alerts")

	other := sellEUR()
	other.Interval = model.Interval15m
	assert.True(t, tr.Observe(other), "intervals are tracked separately")
}

func TestSignalAlert(t *testing.T) {
	a := SignalAlert(sellEUR())
	assert.Equal(t, AlertWarning, a.Level)
	assert.Equal(t, "EURUSD SELL (1h)", a.Title)
	assert.Contains(t, a.Message, "close 1.10500")
	assert.Contains(t, a.Message, "SL 1.10000")
	assert.Contains(t, a.Message, "TP 1.11000")
	assert.Contains(t, a.Message, "div=bearish")
	require.NotNil(t, a.Result)

	res := sellEUR()
	res.StopLoss, res.TakeProfit = nil, nil
	assert.Contains(t, SignalAlert(res).Message, "SL N/A")
}

func TestWebhookNotifier_PostsSignal(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.now = func() time.Time { return time.Date(2025, 6, 5, 9, 0, 0, 0, time.FixedZone("X", 3600)) }
	require.NoError(t, n.Send(context.Background(), SignalAlert(sellEUR())))
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, "2025-06-05T08:00:00Z", got["ts"])
	sig, ok := got["signal"].(map[string]any)
	require.True(t, ok, "signal payload present")
	assert.Equal(t, "SELL", sig["suggestion"])
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down\n")
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	assert.EqualError(t, err, "webhook: status 502: upstream down")
}

const telegramOK = `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`

func TestTelegramNotifier_EscapesMarkdown(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		io.WriteString(w, telegramOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.api.SetAPIEndpoint(srv.URL + "/bot%s/%s")
	require.NoError(t, n.Send(context.Background(), SignalAlert(sellEUR())))

	assert.Equal(t, "42", form.Get("chat_id"))
	assert.Equal(t, "MarkdownV2", form.Get("parse_mode"))
	assert.Contains(t, form.Get("text"), `close 1\.10500`)
	assert.Contains(t, form.Get("text"), `*EURUSD SELL \(1h\)*`)
}

func TestTelegramNotifier_ChannelAndAPIError(t *testing.T) {
	var chat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		chat = r.PostForm.Get("chat_id")
		io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "@fxsignals")
	n.api.SetAPIEndpoint(srv.URL + "/bot%s/%s")
	err := n.Send(context.Background(), Alert{Title: "x", Message: "y"})

	assert.Equal(t, "@fxsignals", chat)
	assert.ErrorContains(t, err, "chat not found")
}

func TestTelegramNotifier_CancelledContext(t *testing.T) {
	n := NewTelegramNotifier("TOKEN", "42")
	n.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	n.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorContains(t, n.Send(ctx, Alert{Title: "x"}), "rate limit")
}

type failing struct{ calls int }

func (f *failing) Send(ctx context.Context, a Alert) error {
	f.calls++
	return errors.New("down")
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	a, b := &failing{}, &failing{}
	err := Multi{a, NewLogNotifier(), b}.Send(context.Background(), Alert{Title: "t"})
	assert.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	assert.NoError(t, Multi{NewLogNotifier()}.Send(context.Background(), Alert{}))
}

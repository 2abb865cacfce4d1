// Package errtrack reports evaluation failures to Sentry.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"fx-confluence/internal/logger"
)

// Options configures the tracker.
type Options struct {
	DSN         string
	Environment string
	Release     string

	// BeforeSend may inspect or drop events; nil sends everything.
	BeforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

// Tracker captures errors with per-call tags. A nil *Tracker is a no-op.
type Tracker struct {
	hub *sentry.Hub
}

// New creates a tracker with its own client. An empty DSN yields a client
// that processes events but sends nothing.
func New(opts Options) (*Tracker, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend:  opts.BeforeSend,
	})
	if err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// CaptureError sends err tagged with tags and the run's trace id.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) {
	if t == nil || err == nil {
		return
	}
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if tid := logger.TraceID(ctx); tid != "" {
			scope.SetTag("trace_id", tid)
		}
	})
	hub.CaptureException(err)
}

// Flush waits up to timeout for buffered events to be delivered.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if t == nil {
		return true
	}
	return t.hub.Flush(timeout)
}

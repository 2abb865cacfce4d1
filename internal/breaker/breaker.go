// Package breaker stops calling a failing result sink for a cooldown period
// and then lets a single probe decide whether it has recovered.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State of a Breaker. The numeric values are exported as a gauge.
type State int

const (
	Closed   State = 0
	Open     State = 1
	HalfOpen State = 2
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned, wrapped with the breaker name, while calls are
// being rejected.
var ErrOpen = errors.New("circuit open")

// Breaker guards one named sink.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	// OnStateChange is called under the breaker lock on every transition.
	OnStateChange func(name string, from, to State)
}

// New returns a closed breaker that opens after threshold consecutive
// failures and probes again after cooldown.
func New(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Do runs fn unless the breaker is open or a half-open probe is already in
// flight. Cancellation of ctx is returned as-is and never counts as a
// failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.admit() {
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.set(HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancelled := err != nil && ctx.Err() != nil
	if b.state == HalfOpen {
		b.probing = false
		switch {
		case cancelled:
		case err != nil:
			b.trip()
		default:
			b.set(Closed)
		}
		return
	}

	switch {
	case cancelled:
	case err != nil:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	default:
		b.failures = 0
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.set(Open)
}

func (b *Breaker) set(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == Closed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(b.name, from, to)
	}
}

// Name returns the sink name the breaker was created with.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count while closed.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

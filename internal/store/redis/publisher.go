// Package redis fans evaluation results out through Redis: a latest-value
// key with TTL, a pub/sub channel and a capped stream per pair.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"fx-confluence/internal/breaker"
	"fx-confluence/internal/model"
)

const (
	defaultResultTTL    = time.Hour
	defaultStreamMaxLen = 500
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	ResultTTL    time.Duration // TTL of sig:latest:* keys (default 1h)
	StreamMaxLen int64         // approximate cap of sig:* streams (default 500)
}

// LatestKey is the key holding the newest result for a pair.
func LatestKey(iv model.Interval, pair string) string {
	return "sig:latest:" + ivLabel(iv) + ":" + pair
}

// Channel is the pub/sub channel a pair's results are published on.
func Channel(iv model.Interval, pair string) string {
	return "pub:sig:" + ivLabel(iv) + ":" + pair
}

// StreamKey is the capped history stream of a pair's results.
func StreamKey(iv model.Interval, pair string) string {
	return "sig:" + ivLabel(iv) + ":" + pair
}

// MacroKey holds the newest macro result for an interval.
func MacroKey(iv model.Interval) string { return "sig:macro:" + ivLabel(iv) }

// MacroChannel is where macro results are published.
func MacroChannel(iv model.Interval) string { return "pub:sig:macro:" + ivLabel(iv) }

func ivLabel(iv model.Interval) string {
	if iv == "" {
		return "na"
	}
	return string(iv)
}

// commandSink is the subset of a Redis pipeline the publisher needs.
type commandSink interface {
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Publish(ctx context.Context, channel, value string)
	XAdd(ctx context.Context, stream string, maxLen int64, value string)
	Exec(ctx context.Context) error
}

type pipeSink struct{ p goredis.Pipeliner }

func (s pipeSink) Set(ctx context.Context, key, value string, ttl time.Duration) {
	s.p.Set(ctx, key, value, ttl)
}

func (s pipeSink) Publish(ctx context.Context, channel, value string) {
	s.p.Publish(ctx, channel, value)
}

func (s pipeSink) XAdd(ctx context.Context, stream string, maxLen int64, value string) {
	s.p.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": value},
	})
}

func (s pipeSink) Exec(ctx context.Context) error {
	_, err := s.p.Exec(ctx)
	return err
}

// Publisher writes results to Redis through a circuit breaker.
type Publisher struct {
	client  *goredis.Client
	newPipe func() commandSink
	cb      *breaker.Breaker
	ttl     time.Duration
	maxLen  int64
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	p := newPublisher(func() commandSink { return pipeSink{client.Pipeline()} }, cfg.ResultTTL, cfg.StreamMaxLen)
	p.client = client
	return p, nil
}

func newPublisher(newPipe func() commandSink, ttl time.Duration, maxLen int64) *Publisher {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Publisher{
		newPipe: newPipe,
		cb:      breaker.New("redis", 5, 10*time.Second),
		ttl:     ttl,
		maxLen:  maxLen,
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker so callers can observe transitions.
func (p *Publisher) Breaker() *breaker.Breaker { return p.cb }

// PublishResults writes the macro result and every pair result in one
// pipeline. Each pair gets SET latest (TTL), PUBLISH and a capped XADD.
// Returns breaker.ErrOpen without touching Redis while the breaker is open.
func (p *Publisher) PublishResults(ctx context.Context, macro model.MacroResult, pairs []model.PairResult) error {
	return p.cb.Do(ctx, func(ctx context.Context) error {
		pipe := p.newPipe()

		m := string(macro.JSON())
		pipe.Set(ctx, MacroKey(macro.Interval), m, p.ttl)
		pipe.Publish(ctx, MacroChannel(macro.Interval), m)

		for i := range pairs {
			r := &pairs[i]
			data := string(r.JSON())
			pipe.Set(ctx, LatestKey(r.Interval, r.Pair), data, p.ttl)
			pipe.Publish(ctx, Channel(r.Interval, r.Pair), data)
			pipe.XAdd(ctx, StreamKey(r.Interval, r.Pair), p.maxLen, data)
		}

		if err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis publish pipeline (%d results): %w", len(pairs), err)
		}
		return nil
	})
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

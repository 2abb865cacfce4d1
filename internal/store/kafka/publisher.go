// Package kafka publishes evaluation results to a Kafka topic, one message
// per pair keyed by interval and pair so a partition sees a pair's results
// in order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fx-confluence/internal/breaker"
	"fx-confluence/internal/logger"
	"fx-confluence/internal/model"
)

// Config configures the producer.
type Config struct {
	Brokers      []string
	Topic        string
	Compression  string        // gzip (default), snappy, lz4, zstd
	RequiredAcks int           // -1 all (default), 0 none, 1 leader
	BatchTimeout time.Duration // default 100ms
	WriteTimeout time.Duration // default 10s
}

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes macro and pair results as JSON messages.
type Publisher struct {
	w     messageWriter
	topic string
	cb    *breaker.Breaker
	now   func() time.Time
}

// NewPublisher builds a hash-balanced writer for cfg.Topic. No connection is
// made until the first publish.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = -1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  3,
	}
	log.Printf("[kafka] publishing results to %s on %v", cfg.Topic, cfg.Brokers)
	return newPublisher(w, cfg.Topic), nil
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{w: w, topic: topic, cb: breaker.New("kafka", 5, 30*time.Second), now: time.Now}
}

// Breaker exposes the circuit breaker so callers can observe transitions.
func (p *Publisher) Breaker() *breaker.Breaker { return p.cb }

// MacroKey is the message key of macro results for iv.
func MacroKey(iv model.Interval) string { return "macro:" + string(iv) }

// PairKey is the message key of a pair's results for iv.
func PairKey(iv model.Interval, pair string) string { return string(iv) + ":" + pair }

// PublishResults writes the macro result and every pair result in one batch
// through the breaker.
func (p *Publisher) PublishResults(ctx context.Context, macro model.MacroResult, pairs []model.PairResult) error {
	now := p.now()
	headers := []kafkago.Header{{Key: "trace_id", Value: []byte(logger.TraceID(ctx))}}

	msgs := make([]kafkago.Message, 0, len(pairs)+1)
	msgs = append(msgs, kafkago.Message{
		Key:     []byte(MacroKey(macro.Interval)),
		Value:   macro.JSON(),
		Headers: append(headers, kafkago.Header{Key: "kind", Value: []byte("macro")}),
		Time:    now,
	})
	for i := range pairs {
		msgs = append(msgs, kafkago.Message{
			Key:     []byte(PairKey(pairs[i].Interval, pairs[i].Pair)),
			Value:   pairs[i].JSON(),
			Headers: append(headers, kafkago.Header{Key: "kind", Value: []byte("pair")}),
			Time:    now,
		})
	}

	return p.cb.Do(ctx, func(ctx context.Context) error {
		if err := p.w.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("kafka write %s: %w", p.topic, err)
		}
		return nil
	})
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func parseCompression(s string) kafkago.Compression {
	switch s {
	case "snappy":
		return kafkago.Snappy
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return kafkago.Gzip
	}
}

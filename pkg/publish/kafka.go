// Package publish forwards buy signals to the downstream trading bot over
// Kafka. The payload shape is an external contract; see
// models.NotificationPayload.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"fundamental_valuation/pkg/models"
)

// DefaultTopic carries the per-company valuation signals.
const DefaultTopic = "fundamental.valuations"

// Config controls the publisher.
type Config struct {
	Brokers []string
	Topic   string
	// BuyOnly skips companies without a buy signal.
	BuyOnly bool
}

// Publisher writes notification payloads, keyed by symbol so one company's
// signals stay in order on a single partition.
type Publisher struct {
	writer *kafka.Writer
	cfg    Config
	log    zerolog.Logger
}

// New creates a Kafka publisher.
func New(cfg Config, log zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: time.Second,
	}
	return &Publisher{
		writer: writer,
		cfg:    cfg,
		log:    log.With().Str("component", "publisher").Logger(),
	}, nil
}

// PublishResult sends one company's notification payload.
func (p *Publisher) PublishResult(ctx context.Context, result *models.ValuationResult) error {
	payload := result.Notification()
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification for %s: %w", result.Symbol, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.Symbol),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish notification for %s: %w", result.Symbol, err)
	}

	p.log.Info().
		Str("symbol", result.Symbol).
		Bool("buy", payload.Buy).
		Float64("valuation_pct", payload.ValuationPercentage).
		Msg("notification published")
	return nil
}

// PublishBatch sends the batch's notifications, optionally buy signals only.
// Per-company publish failures are logged and counted, not fatal.
func (p *Publisher) PublishBatch(ctx context.Context, batch *models.BatchResult) error {
	var failed int
	for i := range batch.Results {
		result := &batch.Results[i]
		if p.cfg.BuyOnly && !result.Buy {
			continue
		}
		if err := p.PublishResult(ctx, result); err != nil {
			p.log.Error().Err(err).Str("symbol", result.Symbol).Msg("publish failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d notifications failed to publish", failed, len(batch.Results))
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

// Producer announces published generations on the index-complete topic.
// Messages are keyed by generation so every announcement of one build lands
// on the same partition.
type Producer struct {
	writer *kafka.Writer
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewProducer writes to cfg.Topics.IndexComplete. Broker failures are retried
// according to retry; the writer itself makes a single attempt per call.
func NewProducer(cfg config.KafkaConfig, retry resilience.RetryConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topics.IndexComplete,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            1,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: w,
		retry:  retry,
		logger: slog.Default().With("component", "kafka-producer", "topic", cfg.Topics.IndexComplete),
	}
}

// PublishIndexComplete writes ev synchronously, retrying with backoff.
func (p *Producer) PublishIndexComplete(ctx context.Context, ev IndexComplete) error {
	if err := ev.validate(); err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding index complete event: %w", err)
	}
	msg := kafka.Message{Key: []byte(ev.Generation), Value: value}

	attempts := 0
	err = resilience.Retry(ctx, "publish-index-complete", p.retry, func() error {
		attempts++
		err := p.writer.WriteMessages(ctx, msg)
		var kerr kafka.Error
		if errors.As(err, &kerr) && !kerr.Temporary() {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		p.logger.Error("failed to publish index complete",
			"generation", ev.Generation,
			"attempts", attempts,
			"error", err,
		)
		return fmt.Errorf("publishing generation %s: %w", ev.Generation, err)
	}
	p.logger.Debug("index complete published", "generation", ev.Generation, "attempts", attempts)
	return nil
}

// Close flushes pending writes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

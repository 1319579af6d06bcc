// Package kafka publishes memory events to a Kafka topic. One message per
// event, keyed by narrative so updates for the same story stay ordered within
// a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/loom/pkg/eventstream"
)

// Config holds connection settings for the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes memory events to Kafka.
type Publisher struct {
	writer *kafkago.Writer
	log    *slog.Logger
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	if log == nil {
		log = slog.Default()
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafkago.Hash{},
	}

	return &Publisher{writer: writer, log: log}, nil
}

// PublishMemoryUpdate writes one event to the configured topic.
func (p *Publisher) PublishMemoryUpdate(ctx context.Context, event *eventstream.MemoryUpdatedEvent) error {
	if event == nil {
		return eventstream.ErrNilMemoryEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Narrative),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: write event: %w", err)
	}

	p.log.Debug("published memory event",
		"topic", p.writer.Topic,
		"narrative", event.Narrative,
		"event_id", event.EventID)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

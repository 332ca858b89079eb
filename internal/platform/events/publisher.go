// File: internal/platform/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deals_marketplace/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits domain events keyed for partitioning.
type Publisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
	Close() error
}

// NewPublisher returns a Kafka publisher, or a no-op one when KAFKA_BROKERS is empty.
func NewPublisher(cfg *config.Config, logger *zap.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("Kafka brokers not configured, catalog events are disabled")
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

// KafkaPublisher writes JSON events to a single topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
		logger: logger.Named("kafka"),
	}
}

// Publish marshals event and writes it with key.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", p.writer.Topic, err)
	}
	p.logger.Debug("Event published", zap.String("topic", p.writer.Topic), zap.String("key", key))
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

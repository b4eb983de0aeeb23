package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher writes events as JSON to a single topic, keyed by Event.Key
// so that all events for one account land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaProducer dials brokers with the settings the publisher relies on.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPublisher wraps producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Name, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(event.Name)},
		},
		Timestamp: event.OccurredAt,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Name, err)
	}
	if p.logger != nil {
		p.logger.Debug("event published",
			slog.String("name", event.Name),
			slog.String("topic", p.topic),
			slog.Int("partition", int(partition)),
			slog.Int64("offset", offset),
		)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

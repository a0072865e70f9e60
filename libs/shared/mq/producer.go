package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Publisher is the publishing side of a topic. *Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Producer wraps a Kafka writer bound to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer constructs a Kafka producer using the provided configuration.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	normalized := cfg.normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(normalized.Brokers...),
		Topic:                  normalized.Topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           normalized.BatchTimeout,
		BatchSize:              normalized.BatchSize,
		WriteTimeout:           normalized.WriteTimeout,
	}
	if normalized.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: normalized.ClientID}
	}

	slog.Info("mq: initialized producer", "config", normalized.String())
	return &Producer{writer: writer, topic: normalized.Topic}, nil
}

// Topic returns the topic the producer writes to.
func (p *Producer) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Publish sends a message to Kafka. Messages sharing a key land on the same
// partition and keep their relative order.
func (p *Producer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	if p == nil || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	for headerKey, headerValue := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerKey, Value: []byte(headerValue)})
	}

	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// PublishJSON marshals value and publishes it through pub.
func PublishJSON(ctx context.Context, pub Publisher, key string, value any, headers map[string]string) error {
	if pub == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("mq: marshal payload: %w", err)
	}
	return pub.Publish(ctx, key, payload, headers)
}

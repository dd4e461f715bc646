package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/stockpredict/server/pkg/logger"
)

// Producer publishes JSON messages. It implements system.Service so the
// writer is closed during shutdown.
type Producer struct {
	writer *kafkago.Writer
	log    *logger.Logger
}

// NewProducer creates a producer for the given brokers.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: writer, log: logger.NewDefault("kafka-producer")}, nil
}

// Name implements system.Service.
func (p *Producer) Name() string { return "kafka-producer" }

// Start implements system.Service; the writer needs no warmup.
func (p *Producer) Start(_ context.Context) error { return nil }

// Stop flushes and closes the writer.
func (p *Producer) Stop(_ context.Context) error {
	return p.writer.Close()
}

// Publish marshals payload as JSON and writes it to the topic, keyed for
// partition affinity.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.log.WithField("topic", topic).WithField("key", key).Debug("message published")
	return nil
}

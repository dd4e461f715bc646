// Package kafka wraps the broker consumers and the producer used for
// outbound trading signals.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/stockpredict/server/pkg/logger"
)

// Handler processes one message. Returning an error logs it and moves on;
// messages are never redelivered to a healthy consumer.
type Handler func(ctx context.Context, value []byte) error

// Consumer reads one topic inside a consumer group and feeds a Handler.
// It implements system.Service.
type Consumer struct {
	name    string
	handler Handler
	reader  *kafkago.Reader
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	// GroupID isolates this consumer's offsets. Each topic gets its own
	// group so a stalled handler does not hold back the others.
	GroupID string
	// StartOffset is where a new group begins: "earliest" replays the
	// topic, anything else starts at the latest offset. Missed messages
	// describe past trading sessions and are usually not worth replaying.
	StartOffset string
}

// NewConsumer creates a consumer for a topic.
func NewConsumer(cfg ConsumerConfig, handler Handler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka group id is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	startOffset := kafkago.LastOffset
	if cfg.StartOffset == "earliest" {
		startOffset = kafkago.FirstOffset
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: startOffset,
	})
	return &Consumer{
		name:    "kafka-consumer-" + cfg.Topic,
		handler: handler,
		reader:  reader,
		log:     logger.NewDefault("kafka").WithField("topic", cfg.Topic),
	}, nil
}

// Name implements system.Service.
func (c *Consumer) Name() string { return c.name }

// Start launches the consume loop.
func (c *Consumer) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("%s already running", c.name)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(runCtx)
	c.log.Info("consumer started")
	return nil
}

// Stop cancels the consume loop and closes the reader.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.reader.Close()
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.log.WithError(err).Warn("read failed; retrying")
			continue
		}

		if err := c.handler(ctx, msg.Value); err != nil {
			c.log.WithError(err).WithField("offset", msg.Offset).Warn("message handling failed")
		}
	}
}

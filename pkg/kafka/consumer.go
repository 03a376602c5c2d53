// Package kafka carries the ingest pipeline's typed event streams over
// segmentio/kafka-go. Both ends are generic over the event payload, so a
// topic's consumer and producer agree on the JSON schema at compile time.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/duplicheck/duplicheck/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event. A non-nil error leaves the message
// uncommitted so the group can redeliver it.
type Handler[T any] func(ctx context.Context, key string, event T) error

// Consumer reads a topic's messages, decodes each value into T, and
// dispatches it to the handler. Values that do not decode are logged and
// committed; replaying malformed bytes can never succeed.
type Consumer[T any] struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler Handler[T]
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer[T any](cfg config.KafkaConfig, topic string, handler Handler[T]) *Consumer[T] {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer[T]{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer[T]) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handle decodes one message and runs the handler. Undecodable values
// return nil so the caller commits past them.
func (c *Consumer[T]) handle(ctx context.Context, msg kafka.Message) error {
	var event T
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Warn("dropping undecodable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	return c.handler(ctx, string(msg.Key), event)
}

// Close closes the underlying Kafka reader.
func (c *Consumer[T]) Close() error {
	return c.reader.Close()
}

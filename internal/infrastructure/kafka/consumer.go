package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, msg kafka.Message) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     MessageReader
	handler    MessageHandler
	topic      string
	groupID    string
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewConsumer(brokerURLs []string, topic, groupID string, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                brokerURLs,
		GroupID:                groupID,
		Topic:                  topic,
		MinBytes:               10e3,
		MaxBytes:               10e6,
		ReadBatchTimeout:       1 * time.Second,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
		HeartbeatInterval:      3 * time.Second,
		PartitionWatchInterval: 5 * time.Second,
		MaxAttempts:            3,
	})
	return NewConsumerWithReader(reader, topic, groupID, handler, time.Second, logger)
}

func NewConsumerWithReader(reader MessageReader, topic, groupID string, handler MessageHandler, retryDelay time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		handler:    handler,
		topic:      topic,
		groupID:    groupID,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Consume fetches messages until ctx is done. A message is committed only after the handler
// accepted it; a failing handler is retried on the same message, so nothing behind it is committed
// past an unprocessed offset.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting", zap.String("topic", c.topic), zap.String("group_id", c.groupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer context cancelled, stopping.")
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if sleepErr := c.sleep(ctx); sleepErr != nil {
				return nil
			}
			continue
		}

		c.logger.Debug("Received Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		if err := c.handle(ctx, msg); err != nil {
			return nil
		}

		if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
			c.logger.Error("Failed to commit offset for Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(commitErr),
			)
		}
	}
}

// handle retries the handler until it succeeds. It only returns an error when ctx is done.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.Error("Error handling Kafka message, will retry without committing",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}

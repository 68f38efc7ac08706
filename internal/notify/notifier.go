// Package notify delivers customer alerts after money has moved. Delivery is best effort:
// failures are logged and never reach the code that committed the movement.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/domain/event"
	kafka_infra "github.com/keneth217/bank/internal/infrastructure/kafka"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// KafkaNotifier publishes notifications for the mail service, keyed by recipient.
type KafkaNotifier struct {
	producer kafka_infra.Producer
	topic    string
}

func NewKafkaNotifier(producer kafka_infra.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(event.NotificationEvent{
		NotificationID: n.ID,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Body:           n.Body,
		Timestamp:      n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}
	return k.producer.Produce(ctx, n.Recipient, k.topic, payload)
}

type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	l.logger.Info("Notification",
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return nil
}

// MultiNotifier calls every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

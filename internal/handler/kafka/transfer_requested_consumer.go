package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/app/banking"
	"github.com/keneth217/bank/internal/domain/event"
	kafka_infra "github.com/keneth217/bank/internal/infrastructure/kafka"
)

// TransferRequestedMessageHandler applies transfer commands. Malformed messages, business
// rejections and duplicates are acknowledged; only infrastructure failures are returned so the
// message is retried.
func TransferRequestedMessageHandler(bankingService banking.BankingService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var req event.TransferRequestedEvent
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to TransferRequestedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		if req.RequestID == "" {
			req.RequestID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}

		logger.Info("Processing TransferRequestedEvent",
			zap.String("request_id", req.RequestID),
			zap.String("source_account", req.SourceAccountNumber),
			zap.String("destination_account", req.DestinationAccountNumber),
			zap.String("amount", req.Amount.String()),
		)

		res, err := bankingService.Transfer(
			banking.WithRequestID(ctx, req.RequestID),
			req.SourceAccountNumber,
			req.DestinationAccountNumber,
			req.Amount,
		)
		if err != nil {
			logger.Error("Failed to process transfer request",
				zap.String("request_id", req.RequestID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to process transfer request %s: %w", req.RequestID, err)
		}

		logger.Info("Transfer request processed",
			zap.String("request_id", req.RequestID),
			zap.String("response_code", string(res.Code)),
		)
		return nil
	}
}

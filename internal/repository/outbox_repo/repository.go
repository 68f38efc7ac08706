package outbox_repo

import (
	"context"

	"github.com/keneth217/bank/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause string, maxAttempts int) error
	CountByStatus(ctx context.Context, querier domain.Querier, status domain.OutboxMessageStatus) (int, error)
}

package inbox_repo

import (
	"context"

	"github.com/keneth217/bank/internal/domain"
)

type InboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error
	GetMessageTx(ctx context.Context, querier domain.Querier, id string) (*domain.InboxMessage, error)
}

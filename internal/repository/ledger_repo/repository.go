package ledger_repo

import (
	"context"
	"time"

	"github.com/keneth217/bank/internal/domain"
)

type LedgerRepository interface {
	AppendTx(ctx context.Context, querier domain.Querier, entry *domain.LedgerEntry) (string, error)
	QueryTx(ctx context.Context, querier domain.Querier, accountNumber string, from, to time.Time) ([]domain.LedgerEntry, error)
	ListByMovementTx(ctx context.Context, querier domain.Querier, movementID string) ([]domain.LedgerEntry, error)
	CountTx(ctx context.Context, querier domain.Querier, accountNumber string) (int, error)
}

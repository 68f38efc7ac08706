package accounts_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/keneth217/bank/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountTx(ctx context.Context, querier domain.Querier, accountNumber string) (*domain.Account, error)
	GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, accountNumber string) (*domain.Account, error)
	GetAccountByEmailTx(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error)
	ExistsTx(ctx context.Context, querier domain.Querier, accountNumber string) (bool, error)
	CompareAndSetBalanceTx(ctx context.Context, querier domain.Querier, accountNumber string, expected, newBalance decimal.Decimal) error
	UpdateStatusTx(ctx context.Context, querier domain.Querier, accountNumber string, status domain.AccountStatus) error
	ListAccounts(ctx context.Context, querier domain.Querier) ([]domain.Account, error)
	SearchByName(ctx context.Context, querier domain.Querier, fragment string) ([]domain.Account, error)
}

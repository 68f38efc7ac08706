package banking

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/lock"
	"github.com/keneth217/bank/internal/repository/accounts_repo"
	"github.com/keneth217/bank/internal/repository/inbox_repo"
	"github.com/keneth217/bank/internal/repository/ledger_repo"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

// BankingService moves money between accounts and answers account queries.
//
// Every rejection is returned as a result carrying a stable response code. The error return is
// reserved for infrastructure failures (*domain.InfrastructureError), after which nothing the call
// attempted is visible in the store.
type BankingService interface {
	Credit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error)
	Debit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error)
	Transfer(ctx context.Context, sourceAccountNumber, destinationAccountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error)

	OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.MoneyMovementResult, error)
	BalanceEnquiry(ctx context.Context, accountNumber string) (*domain.MoneyMovementResult, error)
	NameEnquiry(ctx context.Context, accountNumber string) (string, error)
	CloseAccount(ctx context.Context, accountNumber string) (*domain.MoneyMovementResult, error)
	Statement(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.LedgerEntry, error)
	EntryCount(ctx context.Context, accountNumber string) (int, error)
	Movement(ctx context.Context, movementID string) ([]domain.LedgerEntry, error)
	ListAccounts(ctx context.Context) ([]domain.AccountInfo, error)
	SearchAccounts(ctx context.Context, name string) ([]domain.AccountInfo, error)
}

// NotificationHook receives notifications after a movement has committed. Implementations must not
// block the caller on delivery.
type NotificationHook interface {
	Enqueue(n domain.Notification)
}

type Config struct {
	// MaxConflictRetries bounds how often a unit of work is retried after a concurrent balance change.
	MaxConflictRetries int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConflictRetries: 5,
		RetryBaseDelay:     5 * time.Millisecond,
		RetryMaxDelay:      200 * time.Millisecond,
	}
}

type bankingService struct {
	db          *sql.DB
	locks       *lock.Locker
	accountRepo accounts_repo.AccountRepository
	ledgerRepo  ledger_repo.LedgerRepository
	inboxRepo   inbox_repo.InboxRepository
	outboxRepo  outbox_repo.OutboxRepository
	hook        NotificationHook
	cfg         Config
	now         func() time.Time
	logger      *zap.Logger

	// newAccountNumber is replaced in tests to force collisions.
	newAccountNumber func(time.Time) string
}

func NewBankingService(
	db *sql.DB,
	locks *lock.Locker,
	accountRepo accounts_repo.AccountRepository,
	ledgerRepo ledger_repo.LedgerRepository,
	inboxRepo inbox_repo.InboxRepository,
	outboxRepo outbox_repo.OutboxRepository,
	hook NotificationHook,
	cfg Config,
	logger *zap.Logger,
) BankingService {
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	return &bankingService{
		db:               db,
		locks:            locks,
		accountRepo:      accountRepo,
		ledgerRepo:       ledgerRepo,
		inboxRepo:        inboxRepo,
		outboxRepo:       outboxRepo,
		hook:             hook,
		cfg:              cfg,
		now:              func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newAccountNumber: generateAccountNumber,
		logger:           logger,
	}
}

type requestIDKey struct{}

// WithRequestID attaches an idempotency key to ctx. A movement carrying a key that has already
// committed is answered with DUPLICATE_REQUEST and changes nothing.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

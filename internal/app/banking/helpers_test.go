package banking

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
	"github.com/keneth217/bank/internal/infrastructure/database/databasetest"
	"github.com/keneth217/bank/internal/lock"
	"github.com/keneth217/bank/internal/repository/accounts_repo"
	"github.com/keneth217/bank/internal/repository/inbox_repo"
	"github.com/keneth217/bank/internal/repository/ledger_repo"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

type recordingHook struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (h *recordingHook) Enqueue(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, n)
}

func (h *recordingHook) notifications() []domain.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Notification(nil), h.got...)
}

type panickingHook struct{}

func (panickingHook) Enqueue(domain.Notification) { panic("mail server exploded") }

type fixture struct {
	db       *sql.DB
	svc      *bankingService
	hook     *recordingHook
	accounts accounts_repo.AccountRepository
	ledger   ledger_repo.LedgerRepository
	outbox   outbox_repo.OutboxRepository
}

type option func(*bankingService)

func withLogger(l *zap.Logger) option { return func(s *bankingService) { s.logger = l } }

func withHook(h NotificationHook) option { return func(s *bankingService) { s.hook = h } }

func withAccountRepo(r accounts_repo.AccountRepository) option {
	return func(s *bankingService) { s.accountRepo = r }
}

func withLedgerRepo(r ledger_repo.LedgerRepository) option {
	return func(s *bankingService) { s.ledgerRepo = r }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	db := databasetest.NewSQLite(t)
	hook := &recordingHook{}
	f := &fixture{
		db:       db,
		hook:     hook,
		accounts: accounts_repo.NewAccountRepository(database.SQLite),
		ledger:   ledger_repo.NewLedgerRepository(),
		outbox:   outbox_repo.NewOutboxRepository(database.SQLite),
	}

	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	svc := NewBankingService(db, lock.New(), f.accounts, f.ledger, inbox_repo.NewInboxRepository(), f.outbox, hook, cfg, zap.NewNop())
	f.svc = svc.(*bankingService)
	for _, opt := range opts {
		opt(f.svc)
	}
	return f
}

func (f *fixture) seed(t *testing.T, number, balance string) {
	t.Helper()
	now := time.Now().UTC()
	err := f.accounts.CreateAccountTx(context.Background(), f.db, &domain.Account{
		AccountNumber: number,
		OwnerName:     "Owner " + number,
		Email:         number + "@example.com",
		Balance:       decimal.RequireFromString(balance),
		Status:        domain.AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.GetAccountTx(context.Background(), f.db, number)
	require.NoError(t, err)
	return account.Balance
}

func (f *fixture) entries(t *testing.T, number string) int {
	t.Helper()
	n, err := f.ledger.CountTx(context.Background(), f.db, number)
	require.NoError(t, err)
	return n
}

func (f *fixture) pendingEvents(t *testing.T) int {
	t.Helper()
	n, err := f.outbox.CountByStatus(context.Background(), f.db, domain.OutboxStatusPending)
	require.NoError(t, err)
	return n
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// conflictingAccounts reports a concurrent balance change for the first failures CAS calls,
// standing in for a writer in another process.
type conflictingAccounts struct {
	accounts_repo.AccountRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *conflictingAccounts) CompareAndSetBalanceTx(ctx context.Context, q domain.Querier, number string, expected, newBalance decimal.Decimal) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	r.mu.Unlock()
	if fail {
		return domain.ErrBalanceConflict
	}
	return r.AccountRepository.CompareAndSetBalanceTx(ctx, q, number, expected, newBalance)
}

// failingLedger fails the n-th append.
type failingLedger struct {
	ledger_repo.LedgerRepository
	failOn int
	calls  int
	err    error
}

func (r *failingLedger) AppendTx(ctx context.Context, q domain.Querier, entry *domain.LedgerEntry) (string, error) {
	r.calls++
	if r.calls == r.failOn {
		return "", r.err
	}
	return r.LedgerRepository.AppendTx(ctx, q, entry)
}

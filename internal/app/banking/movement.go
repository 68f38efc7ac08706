package banking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/domain/event"
	"github.com/keneth217/bank/internal/lock"
	"github.com/keneth217/bank/internal/util"
)

// movement collects what one attempt of a unit of work has written, so the ledger event and the
// notifications describe exactly the committed state.
type movement struct {
	id            string
	op            domain.MovementType
	at            time.Time
	entries       []domain.LedgerEntry
	notifications []domain.Notification
}

type applyFunc func(ctx context.Context, tx *sql.Tx, m *movement) (*domain.MoneyMovementResult, error)

func (s *bankingService) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error) {
	if res := validateMovement(amount, accountNumber); res != nil {
		return res, nil
	}

	return s.execute(ctx, domain.MovementCredit, []string{accountNumber}, func(ctx context.Context, tx *sql.Tx, m *movement) (*domain.MoneyMovementResult, error) {
		account, rejected, err := s.loadActiveAccount(ctx, tx, accountNumber)
		if rejected != nil || err != nil {
			return rejected, err
		}

		if err := s.applyDelta(ctx, tx, m, account, amount, domain.EntryKindCredit, ""); err != nil {
			return nil, err
		}
		m.notify(creditAlert(account, amount, ""))
		return domain.NewResult(domain.CodeCreditSuccess, account.Info()), nil
	})
}

func (s *bankingService) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error) {
	if res := validateMovement(amount, accountNumber); res != nil {
		return res, nil
	}

	return s.execute(ctx, domain.MovementDebit, []string{accountNumber}, func(ctx context.Context, tx *sql.Tx, m *movement) (*domain.MoneyMovementResult, error) {
		account, rejected, err := s.loadActiveAccount(ctx, tx, accountNumber)
		if rejected != nil || err != nil {
			return rejected, err
		}

		if !account.CanCover(amount) {
			s.logger.Warn("Insufficient balance for debit",
				zap.String("account_number", accountNumber),
				zap.String("amount", amount.String()),
				zap.String("balance", account.Balance.String()))
			return domain.NewResult(domain.CodeInsufficientBalance, nil), nil
		}

		if err := s.applyDelta(ctx, tx, m, account, amount.Neg(), domain.EntryKindDebit, ""); err != nil {
			return nil, err
		}
		m.notify(debitAlert(account, amount, ""))
		return domain.NewResult(domain.CodeDebitSuccess, account.Info()), nil
	})
}

// Transfer moves amount from source to destination. Both balances and both ledger legs commit
// together or not at all. A transfer to the same account is rejected.
func (s *bankingService) Transfer(ctx context.Context, sourceAccountNumber, destinationAccountNumber string, amount decimal.Decimal) (*domain.MoneyMovementResult, error) {
	if res := validateMovement(amount, sourceAccountNumber, destinationAccountNumber); res != nil {
		return res, nil
	}
	if sourceAccountNumber == destinationAccountNumber {
		return domain.NewResult(domain.CodeSameAccountTransfer, nil), nil
	}

	keys := []string{sourceAccountNumber, destinationAccountNumber}
	return s.execute(ctx, domain.MovementTransfer, keys, func(ctx context.Context, tx *sql.Tx, m *movement) (*domain.MoneyMovementResult, error) {
		accounts := make(map[string]*domain.Account, 2)
		for _, number := range lock.Ordered(keys) {
			account, err := s.accountRepo.GetAccountForUpdateTx(ctx, tx, number)
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			accounts[number] = account
		}

		destination, ok := accounts[destinationAccountNumber]
		if !ok {
			return domain.NewResult(domain.CodeAccountNotExist, nil), nil
		}
		source, ok := accounts[sourceAccountNumber]
		if !ok {
			return domain.NewResult(domain.CodeAccountNotExist, nil), nil
		}
		if !destination.IsActive() || !source.IsActive() {
			return domain.NewResult(domain.CodeAccountClosed, nil), nil
		}
		if !source.CanCover(amount) {
			s.logger.Warn("Insufficient balance for transfer",
				zap.String("source_account", sourceAccountNumber),
				zap.String("destination_account", destinationAccountNumber),
				zap.String("amount", amount.String()),
				zap.String("balance", source.Balance.String()))
			return domain.NewResult(domain.CodeInsufficientBalance, nil), nil
		}

		for _, number := range lock.Ordered(keys) {
			if number == sourceAccountNumber {
				err := s.applyDelta(ctx, tx, m, source, amount.Neg(), domain.EntryKindDebit, destinationAccountNumber)
				if err != nil {
					return nil, err
				}
				continue
			}
			err := s.applyDelta(ctx, tx, m, destination, amount, domain.EntryKindCredit, sourceAccountNumber)
			if err != nil {
				return nil, err
			}
		}

		m.notify(debitAlert(source, amount, destination.OwnerName))
		m.notify(creditAlert(destination, amount, source.OwnerName))
		return domain.NewResult(domain.CodeTransferSuccess, source.Info()), nil
	})
}

// execute runs apply as one unit of work: per-account locks, a transaction, the idempotency
// record, the ledger event and, after commit, the notifications. Balance conflicts caused by
// writers outside this process restart the whole unit of work.
func (s *bankingService) execute(ctx context.Context, op domain.MovementType, keys []string, apply applyFunc) (*domain.MoneyMovementResult, error) {
	requestID := RequestIDFromContext(ctx)

	var result *domain.MoneyMovementResult
	var committed *movement
	err := s.locks.WithLocks(ctx, keys, func(ctx context.Context) error {
		for attempt := 0; ; attempt++ {
			m := &movement{id: util.GenerateUUID(), op: op, at: s.now()}
			var res *domain.MoneyMovementResult

			err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) (bool, error) {
				if requestID != "" {
					processedAt := m.at
					err := s.inboxRepo.CreateMessageTx(ctx, tx, &domain.InboxMessage{
						ID:          requestID,
						Operation:   op,
						Status:      domain.InboxStatusProcessed,
						ReceivedAt:  m.at,
						ProcessedAt: &processedAt,
					})
					if err != nil {
						return false, err
					}
				}

				var err error
				res, err = apply(ctx, tx, m)
				if err != nil {
					return false, err
				}
				if !res.Code.Succeeded() {
					return false, nil
				}
				return true, s.writeLedgerEvent(ctx, tx, m)
			})

			if errors.Is(err, domain.ErrBalanceConflict) && attempt < s.cfg.MaxConflictRetries {
				delay := conflictBackoff(s.cfg, attempt)
				s.logger.Warn("Balance changed concurrently, retrying",
					zap.String("operation", string(op)),
					zap.Strings("accounts", keys),
					zap.Int("attempt", attempt+1),
					zap.Duration("delay", delay))
				if err := sleepWithContext(ctx, delay); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			result = res
			if res.Code.Succeeded() {
				committed = m
			}
			return nil
		}
	})

	if errors.Is(err, domain.ErrDuplicateRequest) {
		s.logDuplicate(ctx, requestID, op)
		return domain.NewResult(domain.CodeDuplicateRequest, nil), nil
	}
	if err != nil {
		s.logger.Error("Money movement failed, rolled back",
			zap.String("operation", string(op)),
			zap.Strings("accounts", keys),
			zap.Error(err))
		return nil, domain.NewInfrastructureError(string(op), err)
	}

	if committed != nil {
		s.logger.Info("Money movement committed",
			zap.String("operation", string(op)),
			zap.String("movement_id", committed.id),
			zap.Int("ledger_entries", len(committed.entries)))
		s.dispatch(committed.notifications)
	}
	return result, nil
}

// logDuplicate reports a replayed request ID together with the operation that first used it.
func (s *bankingService) logDuplicate(ctx context.Context, requestID string, op domain.MovementType) {
	fields := []zap.Field{zap.String("request_id", requestID), zap.String("operation", string(op))}
	original, err := s.inboxRepo.GetMessageTx(ctx, s.db, requestID)
	if err != nil {
		s.logger.Info("Duplicate request ignored", append(fields, zap.NamedError("lookup_error", err))...)
		return
	}
	fields = append(fields,
		zap.String("original_operation", string(original.Operation)),
		zap.Time("original_received_at", original.ReceivedAt))
	s.logger.Info("Duplicate request ignored", fields...)
}

// applyDelta writes account.Balance+delta with compare-and-set and appends the matching ledger
// entry. account is updated in place on success.
func (s *bankingService) applyDelta(ctx context.Context, tx *sql.Tx, m *movement, account *domain.Account, delta decimal.Decimal, kind domain.EntryKind, counterparty string) error {
	newBalance := account.Balance.Add(delta)
	if err := s.accountRepo.CompareAndSetBalanceTx(ctx, tx, account.AccountNumber, account.Balance, newBalance); err != nil {
		return err
	}

	entry := domain.LedgerEntry{
		MovementID:    m.id,
		AccountNumber: account.AccountNumber,
		Kind:          kind,
		Amount:        delta.Abs(),
		Status:        domain.EntryStatusSuccess,
		Counterparty:  counterparty,
		CreatedAt:     m.at,
	}
	if _, err := s.ledgerRepo.AppendTx(ctx, tx, &entry); err != nil {
		return err
	}

	account.Balance = newBalance
	account.UpdatedAt = m.at
	m.entries = append(m.entries, entry)
	return nil
}

func (s *bankingService) writeLedgerEvent(ctx context.Context, tx *sql.Tx, m *movement) error {
	evt := event.LedgerMovementEvent{
		EventID:    util.GenerateUUID(),
		MovementID: m.id,
		Type:       string(m.op),
		OccurredAt: m.at,
	}
	for _, e := range m.entries {
		evt.Entries = append(evt.Entries, event.LedgerEntryPayload{
			EntryID:       e.ID,
			AccountNumber: e.AccountNumber,
			Kind:          string(e.Kind),
			Amount:        e.Amount,
			Counterparty:  e.Counterparty,
		})
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	key := ""
	if len(m.entries) > 0 {
		key = m.entries[0].AccountNumber
	}
	return s.outboxRepo.CreateMessageTx(ctx, tx, &domain.OutboxMessage{
		ID:          evt.EventID,
		AggregateID: m.id,
		MessageType: event.LedgerEventType,
		Key:         key,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   m.at,
	})
}

// loadActiveAccount locks and returns the account, or a rejection result when it is missing or closed.
func (s *bankingService) loadActiveAccount(ctx context.Context, tx *sql.Tx, accountNumber string) (*domain.Account, *domain.MoneyMovementResult, error) {
	account, err := s.accountRepo.GetAccountForUpdateTx(ctx, tx, accountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.logger.Warn("Account not found", zap.String("account_number", accountNumber))
		return nil, domain.NewResult(domain.CodeAccountNotExist, nil), nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !account.IsActive() {
		return nil, domain.NewResult(domain.CodeAccountClosed, nil), nil
	}
	return account, nil, nil
}

func validateMovement(amount decimal.Decimal, accountNumbers ...string) *domain.MoneyMovementResult {
	if !domain.ValidAmount(amount) {
		return domain.NewResult(domain.CodeInvalidAmount, nil)
	}
	for _, n := range accountNumbers {
		if n == "" {
			return domain.NewResult(domain.CodeInvalidRequest, nil)
		}
	}
	return nil
}

func (m *movement) notify(n domain.Notification) {
	n.ID = util.GenerateUUID()
	n.CreatedAt = m.at
	m.notifications = append(m.notifications, n)
}

// dispatch hands notifications to the hook. Nothing the hook does can change the committed result.
func (s *bankingService) dispatch(notifications []domain.Notification) {
	if s.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Notification hook panicked", zap.Any("panic", r))
		}
	}()
	for _, n := range notifications {
		s.hook.Enqueue(n)
	}
}

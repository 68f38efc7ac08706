package banking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/util"
)

const maxAccountNumberAttempts = 5

var ErrAccountNumbersExhausted = errors.New("no free account number after repeated collisions")

type OpenAccountRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	OtherName   string `json:"other_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

func (r OpenAccountRequest) ownerName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.FirstName, r.LastName, r.OtherName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// generateAccountNumber returns the current year followed by six random digits.
func generateAccountNumber(now time.Time) string {
	return fmt.Sprintf("%04d%06d", now.Year(), rand.Intn(1_000_000))
}

func (s *bankingService) OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.MoneyMovementResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" || email == "" {
		return domain.NewResult(domain.CodeInvalidRequest, nil), nil
	}

	for attempt := 0; attempt < maxAccountNumberAttempts; attempt++ {
		now := s.now()
		account := &domain.Account{
			AccountNumber: s.newAccountNumber(now),
			OwnerName:     req.ownerName(),
			Email:         email,
			Balance:       decimal.Zero,
			Status:        domain.AccountStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		var result *domain.MoneyMovementResult
		err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) (bool, error) {
			_, err := s.accountRepo.GetAccountByEmailTx(ctx, tx, email)
			if err == nil {
				result = domain.NewResult(domain.CodeAccountExists, nil)
				return false, nil
			}
			if !errors.Is(err, domain.ErrAccountNotFound) {
				return false, err
			}
			if err := s.accountRepo.CreateAccountTx(ctx, tx, account); err != nil {
				return false, err
			}
			result = domain.NewResult(domain.CodeAccountCreated, account.Info())
			return true, nil
		})

		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			// The unique violation may come from a concurrent open with the same email.
			if _, lookupErr := s.accountRepo.GetAccountByEmailTx(ctx, s.db, email); lookupErr == nil {
				return domain.NewResult(domain.CodeAccountExists, nil), nil
			}
			s.logger.Warn("Account number collision, generating another",
				zap.String("account_number", account.AccountNumber),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			s.logger.Error("Failed to open account", zap.String("email", email), zap.Error(err))
			return nil, domain.NewInfrastructureError("open account", err)
		}

		if result.Code == domain.CodeAccountCreated {
			s.logger.Info("Account opened", zap.String("account_number", account.AccountNumber))
			n := accountCreationAlert(account)
			n.ID = util.GenerateUUID()
			n.CreatedAt = now
			s.dispatch([]domain.Notification{n})
		}
		return result, nil
	}

	s.logger.Error("Failed to open account, every generated account number was taken",
		zap.String("email", email), zap.Int("attempts", maxAccountNumberAttempts))
	return nil, domain.NewInfrastructureError("open account", ErrAccountNumbersExhausted)
}

func (s *bankingService) BalanceEnquiry(ctx context.Context, accountNumber string) (*domain.MoneyMovementResult, error) {
	account, err := s.accountRepo.GetAccountTx(ctx, s.db, accountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.NewResult(domain.CodeAccountNotExist, nil), nil
	}
	if err != nil {
		return nil, domain.NewInfrastructureError("balance enquiry", err)
	}
	return domain.NewResult(domain.CodeAccountFound, account.Info()), nil
}

// NameEnquiry returns the owner name, or domain.ErrAccountNotFound.
func (s *bankingService) NameEnquiry(ctx context.Context, accountNumber string) (string, error) {
	account, err := s.accountRepo.GetAccountTx(ctx, s.db, accountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return "", err
	}
	if err != nil {
		return "", domain.NewInfrastructureError("name enquiry", err)
	}
	return account.Info().AccountName, nil
}

// CloseAccount marks an empty account CLOSED. Closed accounts keep their ledger history and are
// never deleted.
func (s *bankingService) CloseAccount(ctx context.Context, accountNumber string) (*domain.MoneyMovementResult, error) {
	if accountNumber == "" {
		return domain.NewResult(domain.CodeInvalidRequest, nil), nil
	}

	var result *domain.MoneyMovementResult
	err := s.locks.WithLocks(ctx, []string{accountNumber}, func(ctx context.Context) error {
		return s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) (bool, error) {
			account, rejected, err := s.loadActiveAccount(ctx, tx, accountNumber)
			if rejected != nil || err != nil {
				result = rejected
				return false, err
			}
			if !account.Balance.IsZero() {
				result = domain.NewResult(domain.CodeAccountNotEmpty, account.Info())
				return false, nil
			}
			if err := s.accountRepo.UpdateStatusTx(ctx, tx, accountNumber, domain.AccountStatusClosed); err != nil {
				return false, err
			}
			account.Status = domain.AccountStatusClosed
			result = domain.NewResult(domain.CodeAccountCloseSuccess, account.Info())
			return true, nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to close account", zap.String("account_number", accountNumber), zap.Error(err))
		return nil, domain.NewInfrastructureError("close account", err)
	}
	if result.Code == domain.CodeAccountCloseSuccess {
		s.logger.Info("Account closed", zap.String("account_number", accountNumber))
	}
	return result, nil
}

// Statement returns the ledger entries of accountNumber for the calendar days from..to, both
// inclusive, oldest first.
func (s *bankingService) Statement(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.LedgerEntry, error) {
	exists, err := s.accountRepo.ExistsTx(ctx, s.db, accountNumber)
	if err != nil {
		return nil, domain.NewInfrastructureError("statement", err)
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}

	start := startOfDay(from)
	end := startOfDay(to).AddDate(0, 0, 1)
	if !end.After(start) {
		return []domain.LedgerEntry{}, nil
	}

	entries, err := s.ledgerRepo.QueryTx(ctx, s.db, accountNumber, start, end)
	if err != nil {
		return nil, domain.NewInfrastructureError("statement", err)
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, nil
}

// EntryCount returns how many ledger entries the account has over its whole lifetime.
func (s *bankingService) EntryCount(ctx context.Context, accountNumber string) (int, error) {
	exists, err := s.accountRepo.ExistsTx(ctx, s.db, accountNumber)
	if err != nil {
		return 0, domain.NewInfrastructureError("entry count", err)
	}
	if !exists {
		return 0, domain.ErrAccountNotFound
	}
	count, err := s.ledgerRepo.CountTx(ctx, s.db, accountNumber)
	if err != nil {
		return 0, domain.NewInfrastructureError("entry count", err)
	}
	return count, nil
}

// Movement returns every ledger leg written by one committed movement: one entry for a credit or
// debit, two for a transfer.
func (s *bankingService) Movement(ctx context.Context, movementID string) ([]domain.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByMovementTx(ctx, s.db, movementID)
	if err != nil {
		return nil, domain.NewInfrastructureError("movement", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrMovementNotFound
	}
	return entries, nil
}

func (s *bankingService) ListAccounts(ctx context.Context) ([]domain.AccountInfo, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx, s.db)
	if err != nil {
		return nil, domain.NewInfrastructureError("list accounts", err)
	}
	return toInfos(accounts), nil
}

func (s *bankingService) SearchAccounts(ctx context.Context, name string) ([]domain.AccountInfo, error) {
	if strings.TrimSpace(name) == "" {
		return s.ListAccounts(ctx)
	}
	accounts, err := s.accountRepo.SearchByName(ctx, s.db, name)
	if err != nil {
		return nil, domain.NewInfrastructureError("search accounts", err)
	}
	return toInfos(accounts), nil
}

func toInfos(accounts []domain.Account) []domain.AccountInfo {
	infos := make([]domain.AccountInfo, 0, len(accounts))
	for i := range accounts {
		infos = append(infos, *accounts[i].Info())
	}
	return infos
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
)

const accountColumns = `account_number, owner_name, email, balance, status, created_at, updated_at`

type accountRepository struct {
	dialect database.Dialect
}

func NewAccountRepository(dialect database.Dialect) *accountRepository {
	return &accountRepository{dialect: dialect}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, owner_name, email, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier.ExecContext(ctx, query,
		account.AccountNumber,
		account.OwnerName,
		account.Email,
		domain.FormatMoney(account.Balance),
		string(account.Status),
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account %s: %w", account.AccountNumber, err)
	}
	return nil
}

func (r *accountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return r.getOne(ctx, querier, query, accountNumber)
}

// GetAccountForUpdateTx reads the account and, on dialects that support it, locks the row until the
// surrounding transaction ends.
func (r *accountRepository) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1` + r.dialect.ForUpdate()
	return r.getOne(ctx, querier, query, accountNumber)
}

func (r *accountRepository) GetAccountByEmailTx(ctx context.Context, querier domain.Querier, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.getOne(ctx, querier, query, email)
}

func (r *accountRepository) ExistsTx(ctx context.Context, querier domain.Querier, accountNumber string) (bool, error) {
	var exists bool
	err := querier.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, accountNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account %s: %w", accountNumber, err)
	}
	return exists, nil
}

// CompareAndSetBalanceTx writes newBalance only if the stored balance still equals expected.
// Balances are stored at a fixed scale, so the comparison is exact on every dialect.
func (r *accountRepository) CompareAndSetBalanceTx(ctx context.Context, querier domain.Querier, accountNumber string, expected, newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return domain.ErrInsufficientFunds
	}
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE account_number = $3 AND balance = $4
	`
	res, err := querier.ExecContext(ctx, query,
		domain.FormatMoney(newBalance),
		time.Now().UTC(),
		accountNumber,
		domain.FormatMoney(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update balance for %s: %w", accountNumber, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		exists, err := r.ExistsTx(ctx, querier, accountNumber)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrBalanceConflict
	}
	return nil
}

func (r *accountRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, accountNumber string, status domain.AccountStatus) error {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = $2
		WHERE account_number = $3
	`
	res, err := querier.ExecContext(ctx, query, string(status), time.Now().UTC(), accountNumber)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", accountNumber, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) ListAccounts(ctx context.Context, querier domain.Querier) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY account_number`
	return r.getMany(ctx, querier, query)
}

// SearchByName matches any account whose owner name contains fragment, ignoring case.
func (r *accountRepository) SearchByName(ctx context.Context, querier domain.Querier, fragment string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(owner_name) LIKE $1 ORDER BY account_number`
	pattern := "%" + strings.ToLower(strings.TrimSpace(fragment)) + "%"
	return r.getMany(ctx, querier, query, pattern)
}

func (r *accountRepository) getOne(ctx context.Context, querier domain.Querier, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(querier.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %v: %w", arg, err)
	}
	return account, nil
}

func (r *accountRepository) getMany(ctx context.Context, querier domain.Querier, query string, args ...any) ([]domain.Account, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var status string
	err := row.Scan(
		&account.AccountNumber,
		&account.OwnerName,
		&account.Email,
		&account.Balance,
		&status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Status = domain.AccountStatus(status)
	return account, nil
}

package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/util"
)

const entryColumns = `id, movement_id, account_number, kind, amount, status, counterparty, created_at`

type ledgerRepository struct{}

func NewLedgerRepository() *ledgerRepository {
	return &ledgerRepository{}
}

// AppendTx inserts an entry and returns its ID. A missing ID is filled with a ULID derived from
// CreatedAt, so IDs sort in commit order within the same timestamp.
func (r *ledgerRepository) AppendTx(ctx context.Context, querier domain.Querier, entry *domain.LedgerEntry) (string, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = util.GenerateULID(entry.CreatedAt)
	}
	if entry.Status == "" {
		entry.Status = domain.EntryStatusSuccess
	}

	query := `
		INSERT INTO ledger_entries (id, movement_id, account_number, kind, amount, status, counterparty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		entry.ID,
		entry.MovementID,
		entry.AccountNumber,
		string(entry.Kind),
		domain.FormatMoney(entry.Amount),
		string(entry.Status),
		entry.Counterparty,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to append ledger entry for %s: %w", entry.AccountNumber, err)
	}
	return entry.ID, nil
}

// QueryTx returns the entries of accountNumber with from <= created_at < to, oldest first.
func (r *ledgerRepository) QueryTx(ctx context.Context, querier domain.Querier, accountNumber string, from, to time.Time) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_number = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`
	return r.query(ctx, querier, query, accountNumber, from.UTC(), to.UTC())
}

func (r *ledgerRepository) ListByMovementTx(ctx context.Context, querier domain.Querier, movementID string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE movement_id = $1
		ORDER BY id ASC
	`
	return r.query(ctx, querier, query, movementID)
}

func (r *ledgerRepository) CountTx(ctx context.Context, querier domain.Querier, accountNumber string) (int, error) {
	var count int
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_number = $1`, accountNumber,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries for %s: %w", accountNumber, err)
	}
	return count, nil
}

func (r *ledgerRepository) query(ctx context.Context, querier domain.Querier, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		var kind, status string
		err := rows.Scan(
			&entry.ID,
			&entry.MovementID,
			&entry.AccountNumber,
			&kind,
			&entry.Amount,
			&status,
			&entry.Counterparty,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.Kind = domain.EntryKind(kind)
		entry.Status = domain.EntryStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

package inbox_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
)

var ErrMessageNotFound = errors.New("inbox message not found")

type inboxRepository struct{}

func NewInboxRepository() *inboxRepository {
	return &inboxRepository{}
}

// CreateMessageTx records a request ID. A second insert of the same ID fails with
// domain.ErrDuplicateRequest, which rolls back whatever the request changed.
func (r *inboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error {
	query := `
		INSERT INTO inbox_messages (id, operation, status, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	var processedAt sql.NullTime
	if msg.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: msg.ProcessedAt.UTC(), Valid: true}
	}

	_, err := querier.ExecContext(ctx, query,
		msg.ID,
		string(msg.Operation),
		string(msg.Status),
		msg.ReceivedAt.UTC(),
		processedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert inbox message %s: %w", msg.ID, err)
	}
	return nil
}

func (r *inboxRepository) GetMessageTx(ctx context.Context, querier domain.Querier, id string) (*domain.InboxMessage, error) {
	query := `
		SELECT id, operation, status, received_at, processed_at
		FROM inbox_messages
		WHERE id = $1
	`
	msg := &domain.InboxMessage{}
	var operation, status string
	var processedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&operation,
		&status,
		&msg.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get inbox message %s: %w", id, err)
	}
	msg.Operation = domain.MovementType(operation)
	msg.Status = domain.InboxMessageStatus(status)
	if processedAt.Valid {
		msg.ProcessedAt = &processedAt.Time
	}
	return msg, nil
}

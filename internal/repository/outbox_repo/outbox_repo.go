package outbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
)

type outboxRepository struct {
	dialect database.Dialect
}

func NewOutboxRepository(dialect database.Dialect) *outboxRepository {
	return &outboxRepository{dialect: dialect}
}

func (r *outboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, message_type, key_value, payload, status, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if msg.Status == "" {
		msg.Status = domain.OutboxStatusPending
	}
	_, err := querier.ExecContext(ctx, query,
		msg.ID,
		msg.AggregateID,
		msg.MessageType,
		msg.Key,
		msg.Payload,
		string(msg.Status),
		msg.Attempts,
		msg.LastError,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// GetPendingMessages returns up to limit pending messages, oldest first. Inside a transaction on
// Postgres the rows stay locked, and rows locked by another processor are skipped.
func (r *outboxRepository) GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_id, message_type, key_value, payload, status, attempts, last_error, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2` + r.dialect.ForUpdateSkipLocked()

	rows, err := querier.QueryContext(ctx, query, string(domain.OutboxStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var status string
		var sentAt sql.NullTime
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateID,
			&msg.MessageType,
			&msg.Key,
			&msg.Payload,
			&status,
			&msg.Attempts,
			&msg.LastError,
			&msg.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Status = domain.OutboxMessageStatus(status)
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

func (r *outboxRepository) MarkSentTx(ctx context.Context, querier domain.Querier, id string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, string(domain.OutboxStatusSent), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	}
	return expectOneRow(res, id)
}

// RecordFailureTx counts a failed publish attempt. Once attempts reach maxAttempts the message is
// marked FAILED and is no longer returned as pending.
func (r *outboxRepository) RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause string, maxAttempts int) error {
	query := `
		UPDATE outbox_messages
		SET last_error = $1,
		    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END,
		    attempts = attempts + 1
		WHERE id = $4
	`
	res, err := querier.ExecContext(ctx, query, cause, maxAttempts, string(domain.OutboxStatusFailed), id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure for %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *outboxRepository) CountByStatus(ctx context.Context, querier domain.Querier, status domain.OutboxMessageStatus) (int, error) {
	var count int
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_messages WHERE status = $1`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox messages: %w", err)
	}
	return count, nil
}

func expectOneRow(res sql.Result, id string) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update (id %s): %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no outbox message found with id %s", id)
	}
	return nil
}

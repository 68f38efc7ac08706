package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is a ledger event written in the same transaction as the movement it describes
// and published to Kafka afterwards.
type OutboxMessage struct {
	ID          string
	AggregateID string
	MessageType string
	Key         string
	Payload     []byte
	Status      OutboxMessageStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
}

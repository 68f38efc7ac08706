package domain

import "time"

type InboxMessageStatus string

const InboxStatusProcessed InboxMessageStatus = "PROCESSED"

// InboxMessage records a processed request ID so replays of the same request are not applied twice.
type InboxMessage struct {
	ID          string
	Operation   MovementType
	Status      InboxMessageStatus
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

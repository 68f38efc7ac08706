package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerEventType       = "ledger.movement.committed"
	NotificationEventType = "notification.requested"
)

type TransferRequestedEvent struct {
	RequestID                string          `json:"request_id"`
	SourceAccountNumber      string          `json:"source_account_number"`
	DestinationAccountNumber string          `json:"destination_account_number"`
	Amount                   decimal.Decimal `json:"amount"`
	Timestamp                time.Time       `json:"timestamp"`
}

type LedgerEntryPayload struct {
	EntryID       string          `json:"entry_id"`
	AccountNumber string          `json:"account_number"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Counterparty  string          `json:"counterparty,omitempty"`
}

type LedgerMovementEvent struct {
	EventID    string               `json:"event_id"`
	MovementID string               `json:"movement_id"`
	Type       string               `json:"type"`
	Entries    []LedgerEntryPayload `json:"entries"`
	OccurredAt time.Time            `json:"occurred_at"`
}

type NotificationEvent struct {
	NotificationID string    `json:"notification_id"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Timestamp      time.Time `json:"timestamp"`
}

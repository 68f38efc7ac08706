package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMovementNotFound = errors.New("movement not found")

type EntryKind string

const (
	EntryKindCredit EntryKind = "CREDIT"
	EntryKindDebit  EntryKind = "DEBIT"
)

// EntryStatus is always SUCCESS: rejected attempts are never written to the ledger.
type EntryStatus string

const EntryStatusSuccess EntryStatus = "SUCCESS"

// LedgerEntry is one leg of a committed money movement. Entries are append-only.
type LedgerEntry struct {
	ID            string
	MovementID    string
	AccountNumber string
	Kind          EntryKind
	Amount        decimal.Decimal
	Status        EntryStatus
	Counterparty  string
	CreatedAt     time.Time
}

type MovementType string

const (
	MovementCredit   MovementType = "CREDIT"
	MovementDebit    MovementType = "DEBIT"
	MovementTransfer MovementType = "TRANSFER"
)

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("account not found")
var ErrAccountAlreadyExists = errors.New("account already exists")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrBalanceConflict = errors.New("account balance changed concurrently")

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

type Account struct {
	AccountNumber string
	OwnerName     string
	Email         string
	Balance       decimal.Decimal
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanCover compares at full precision; the balance is never truncated before comparing.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

func (a *Account) Info() *AccountInfo {
	return &AccountInfo{
		AccountName:   strings.TrimSpace(a.OwnerName),
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance,
	}
}

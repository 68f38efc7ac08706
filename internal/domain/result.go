package domain

import "github.com/shopspring/decimal"

// ResponseCode values are consumed by callers for branching and must stay stable.
type ResponseCode string

const (
	CodeAccountNotExist     ResponseCode = "ACCOUNT_NOT_EXIST"
	CodeAccountExists       ResponseCode = "ACCOUNT_EXISTS"
	CodeAccountCreated      ResponseCode = "ACCOUNT_CREATED"
	CodeAccountFound        ResponseCode = "ACCOUNT_FOUND"
	CodeAccountClosed       ResponseCode = "ACCOUNT_CLOSED"
	CodeAccountCloseSuccess ResponseCode = "ACCOUNT_CLOSE_SUCCESS"
	CodeAccountNotEmpty     ResponseCode = "ACCOUNT_NOT_EMPTY"
	CodeInvalidAmount       ResponseCode = "INVALID_AMOUNT"
	CodeInvalidRequest      ResponseCode = "INVALID_REQUEST"
	CodeInsufficientBalance ResponseCode = "INSUFFICIENT_BALANCE"
	CodeSameAccountTransfer ResponseCode = "SAME_ACCOUNT_TRANSFER"
	CodeDuplicateRequest    ResponseCode = "DUPLICATE_REQUEST"
	CodeCreditSuccess       ResponseCode = "CREDIT_SUCCESS"
	CodeDebitSuccess        ResponseCode = "DEBIT_SUCCESS"
	CodeTransferSuccess     ResponseCode = "TRANSFER_SUCCESS"
)

var responseMessages = map[ResponseCode]string{
	CodeAccountNotExist:     "User with the provided account number does not exist",
	CodeAccountExists:       "This user already has an account created",
	CodeAccountCreated:      "Account has been successfully created",
	CodeAccountFound:        "User account found",
	CodeAccountClosed:       "Account is closed",
	CodeAccountCloseSuccess: "Account has been closed",
	CodeAccountNotEmpty:     "Account balance must be zero before closing",
	CodeInvalidAmount:       "Amount must be positive with at most two decimal places",
	CodeInvalidRequest:      "Request is missing required fields",
	CodeInsufficientBalance: "Insufficient balance",
	CodeSameAccountTransfer: "Source and destination accounts must differ",
	CodeDuplicateRequest:    "Request has already been processed",
	CodeCreditSuccess:       "Account has been credited successfully",
	CodeDebitSuccess:        "Account has been debited successfully",
	CodeTransferSuccess:     "Transfer successful",
}

// Succeeded reports whether the code describes a committed or read-only successful outcome.
func (c ResponseCode) Succeeded() bool {
	switch c {
	case CodeAccountCreated, CodeAccountFound, CodeAccountCloseSuccess,
		CodeCreditSuccess, CodeDebitSuccess, CodeTransferSuccess:
		return true
	}
	return false
}

func (c ResponseCode) Message() string {
	return responseMessages[c]
}

type AccountInfo struct {
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"account_balance"`
}

// MoneyMovementResult is produced fresh per call and never persisted.
type MoneyMovementResult struct {
	Code    ResponseCode `json:"response_code"`
	Message string       `json:"response_message"`
	Account *AccountInfo `json:"account_info,omitempty"`
}

func NewResult(code ResponseCode, info *AccountInfo) *MoneyMovementResult {
	return &MoneyMovementResult{Code: code, Message: code.Message(), Account: info}
}

package banking_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/app/banking"
	"github.com/keneth217/bank/internal/domain"
)

const (
	idempotencyHeader = "Idempotency-Key"
	dateLayout        = "2006-01-02"
)

type BankingHandler struct {
	service banking.BankingService
	logger  *zap.Logger
}

func NewBankingHandler(s banking.BankingService, l *zap.Logger) *BankingHandler {
	return &BankingHandler{service: s, logger: l}
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	SourceAccountNumber      string          `json:"source_account_number"`
	DestinationAccountNumber string          `json:"destination_account_number"`
	Amount                   decimal.Decimal `json:"amount"`
}

type NameResponse struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type StatementEntry struct {
	EntryID       string          `json:"entry_id"`
	MovementID    string          `json:"movement_id"`
	AccountNumber string          `json:"account_number"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Counterparty  string          `json:"counterparty,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *BankingHandler) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req banking.OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for OpenAccount", zap.Error(err))
		h.writeResult(w, domain.NewResult(domain.CodeInvalidRequest, nil))
		return
	}

	res, err := h.service.OpenAccount(r.Context(), req)
	if err != nil {
		h.writeInternalError(w, "open account", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.SearchAccounts(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeInternalError(w, "list accounts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

func (h *BankingHandler) BalanceEnquiryHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.BalanceEnquiry(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeInternalError(w, "balance enquiry", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) NameEnquiryHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	name, err := h.service.NameEnquiry(r.Context(), number)
	if errors.Is(err, domain.ErrAccountNotFound) {
		h.writeResult(w, domain.NewResult(domain.CodeAccountNotExist, nil))
		return
	}
	if err != nil {
		h.writeInternalError(w, "name enquiry", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NameResponse{AccountNumber: number, AccountName: name})
}

func (h *BankingHandler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CloseAccount(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeInternalError(w, "close account", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) CreditHandler(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for Credit", zap.Error(err))
		h.writeResult(w, domain.NewResult(domain.CodeInvalidRequest, nil))
		return
	}

	res, err := h.service.Credit(h.withRequestID(r), chi.URLParam(r, "number"), req.Amount)
	if err != nil {
		h.writeInternalError(w, "credit", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) DebitHandler(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for Debit", zap.Error(err))
		h.writeResult(w, domain.NewResult(domain.CodeInvalidRequest, nil))
		return
	}

	res, err := h.service.Debit(h.withRequestID(r), chi.URLParam(r, "number"), req.Amount)
	if err != nil {
		h.writeInternalError(w, "debit", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for Transfer", zap.Error(err))
		h.writeResult(w, domain.NewResult(domain.CodeInvalidRequest, nil))
		return
	}

	res, err := h.service.Transfer(h.withRequestID(r), req.SourceAccountNumber, req.DestinationAccountNumber, req.Amount)
	if err != nil {
		h.writeInternalError(w, "transfer", err)
		return
	}
	h.writeResult(w, res)
}

func (h *BankingHandler) StatementHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	start, errStart := time.Parse(dateLayout, r.URL.Query().Get("start"))
	end, errEnd := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if errStart != nil || errEnd != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "start and end must be dates in YYYY-MM-DD format"})
		return
	}

	entries, err := h.service.Statement(r.Context(), number, start, end)
	if errors.Is(err, domain.ErrAccountNotFound) {
		h.writeResult(w, domain.NewResult(domain.CodeAccountNotExist, nil))
		return
	}
	if err != nil {
		h.writeInternalError(w, "statement", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toStatementEntries(entries))
}

func (h *BankingHandler) MovementHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Movement(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrMovementNotFound) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Movement not found"})
		return
	}
	if err != nil {
		h.writeInternalError(w, "movement", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toStatementEntries(entries))
}

func toStatementEntries(entries []domain.LedgerEntry) []StatementEntry {
	resp := make([]StatementEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, StatementEntry{
			EntryID:       e.ID,
			MovementID:    e.MovementID,
			AccountNumber: e.AccountNumber,
			Kind:          string(e.Kind),
			Amount:        e.Amount,
			Status:        string(e.Status),
			Counterparty:  e.Counterparty,
			CreatedAt:     e.CreatedAt,
		})
	}
	return resp
}

func (h *BankingHandler) withRequestID(r *http.Request) context.Context {
	if key := r.Header.Get(idempotencyHeader); key != "" {
		return banking.WithRequestID(r.Context(), key)
	}
	return r.Context()
}

func (h *BankingHandler) writeResult(w http.ResponseWriter, res *domain.MoneyMovementResult) {
	h.writeJSON(w, statusFor(res.Code), res)
}

func (h *BankingHandler) writeInternalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

func (h *BankingHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func statusFor(code domain.ResponseCode) int {
	switch code {
	case domain.CodeAccountCreated:
		return http.StatusCreated
	case domain.CodeAccountNotExist:
		return http.StatusNotFound
	case domain.CodeInvalidAmount, domain.CodeInvalidRequest, domain.CodeSameAccountTransfer:
		return http.StatusBadRequest
	case domain.CodeInsufficientBalance, domain.CodeAccountClosed, domain.CodeAccountNotEmpty,
		domain.CodeDuplicateRequest, domain.CodeAccountExists:
		return http.StatusConflict
	}
	return http.StatusOK
}

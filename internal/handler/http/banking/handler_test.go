package banking_http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/app/banking"
	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
	"github.com/keneth217/bank/internal/infrastructure/database/databasetest"
	"github.com/keneth217/bank/internal/lock"
	"github.com/keneth217/bank/internal/repository/accounts_repo"
	"github.com/keneth217/bank/internal/repository/inbox_repo"
	"github.com/keneth217/bank/internal/repository/ledger_repo"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

type nopHook struct{}

func (nopHook) Enqueue(domain.Notification) {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := databasetest.NewSQLite(t)
	svc := banking.NewBankingService(
		db,
		lock.New(),
		accounts_repo.NewAccountRepository(database.SQLite),
		ledger_repo.NewLedgerRepository(),
		inbox_repo.NewInboxRepository(),
		outbox_repo.NewOutboxRepository(database.SQLite),
		nopHook{},
		banking.DefaultConfig(),
		zap.NewNop(),
	)
	return serve(t, svc)
}

func serve(t *testing.T, svc banking.BankingService) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, svc, zap.NewNop())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func openAccount(t *testing.T, srv *httptest.Server, first, email string) string {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/accounts", banking.OpenAccountRequest{
		FirstName: first,
		LastName:  "Doe",
		Email:     email,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[domain.MoneyMovementResult](t, resp)
	require.NotNil(t, res.Account)
	return res.Account.AccountNumber
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)
	number := openAccount(t, srv, "Jane", "jane@example.com")

	resp := do(t, srv, http.MethodPost, "/accounts", banking.OpenAccountRequest{FirstName: "Jane", LastName: "Doe", Email: "JANE@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.CodeAccountExists, decode[domain.MoneyMovementResult](t, resp).Code)

	resp = do(t, srv, http.MethodGet, "/accounts/"+number+"/name", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jane Doe", decode[NameResponse](t, resp).AccountName)

	resp = do(t, srv, http.MethodPost, "/accounts/"+number+"/credit", `{"amount":"25.50"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.CodeCreditSuccess, decode[domain.MoneyMovementResult](t, resp).Code)

	resp = do(t, srv, http.MethodDelete, "/accounts/"+number, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.CodeAccountNotEmpty, decode[domain.MoneyMovementResult](t, resp).Code)

	resp = do(t, srv, http.MethodPost, "/accounts/"+number+"/debit", `{"amount":25.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/accounts/"+number, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.CodeAccountCloseSuccess, decode[domain.MoneyMovementResult](t, resp).Code)

	resp = do(t, srv, http.MethodPost, "/accounts/"+number+"/credit", `{"amount":"1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.CodeAccountClosed, decode[domain.MoneyMovementResult](t, resp).Code)
}

func TestMovementStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	a := openAccount(t, srv, "Alice", "alice@example.com")
	b := openAccount(t, srv, "Bob", "bob@example.com")
	do(t, srv, http.MethodPost, "/accounts/"+a+"/credit", `{"amount":"100"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   domain.ResponseCode
	}{
		{name: "transfer", method: http.MethodPost, path: "/transfers", body: TransferRequest{SourceAccountNumber: a, DestinationAccountNumber: b, Amount: decimal.RequireFromString("40")}, status: http.StatusOK, code: domain.CodeTransferSuccess},
		{name: "insufficient balance", method: http.MethodPost, path: "/transfers", body: TransferRequest{SourceAccountNumber: a, DestinationAccountNumber: b, Amount: decimal.RequireFromString("60.01")}, status: http.StatusConflict, code: domain.CodeInsufficientBalance},
		{name: "same account", method: http.MethodPost, path: "/transfers", body: TransferRequest{SourceAccountNumber: a, DestinationAccountNumber: a, Amount: decimal.RequireFromString("1")}, status: http.StatusBadRequest, code: domain.CodeSameAccountTransfer},
		{name: "too many decimals", method: http.MethodPost, path: "/accounts/" + a + "/debit", body: `{"amount":"0.001"}`, status: http.StatusBadRequest, code: domain.CodeInvalidAmount},
		{name: "missing amount", method: http.MethodPost, path: "/accounts/" + a + "/credit", body: `{}`, status: http.StatusBadRequest, code: domain.CodeInvalidAmount},
		{name: "malformed body", method: http.MethodPost, path: "/accounts/" + a + "/credit", body: `{"amount":`, status: http.StatusBadRequest, code: domain.CodeInvalidRequest},
		{name: "unknown account", method: http.MethodPost, path: "/accounts/2024000000/credit", body: `{"amount":"1"}`, status: http.StatusNotFound, code: domain.CodeAccountNotExist},
		{name: "balance enquiry", method: http.MethodGet, path: "/accounts/" + b, status: http.StatusOK, code: domain.CodeAccountFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[domain.MoneyMovementResult](t, resp).Code)
		})
	}

	resp := do(t, srv, http.MethodGet, "/accounts/"+b, nil)
	res := decode[domain.MoneyMovementResult](t, resp)
	require.NotNil(t, res.Account)
	assert.True(t, res.Account.Balance.Equal(decimal.RequireFromString("40")))
}

func TestIdempotencyKey(t *testing.T) {
	srv := newTestServer(t)
	a := openAccount(t, srv, "Alice", "alice@example.com")

	resp := do(t, srv, http.MethodPost, "/accounts/"+a+"/credit", `{"amount":"10"}`, "Idempotency-Key", "credit-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/accounts/"+a+"/credit", `{"amount":"10"}`, "Idempotency-Key", "credit-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.CodeDuplicateRequest, decode[domain.MoneyMovementResult](t, resp).Code)

	resp = do(t, srv, http.MethodGet, "/accounts/"+a, nil)
	res := decode[domain.MoneyMovementResult](t, resp)
	assert.True(t, res.Account.Balance.Equal(decimal.RequireFromString("10")))
}

func TestListAndSearchAccounts(t *testing.T) {
	srv := newTestServer(t)
	openAccount(t, srv, "Alice", "alice@example.com")
	openAccount(t, srv, "Bob", "bob@example.com")

	resp := do(t, srv, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.AccountInfo](t, resp), 2)

	resp = do(t, srv, http.MethodGet, "/accounts?name=ali", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[[]domain.AccountInfo](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice Doe", found[0].AccountName)
}

func TestStatement(t *testing.T) {
	srv := newTestServer(t)
	a := openAccount(t, srv, "Alice", "alice@example.com")
	do(t, srv, http.MethodPost, "/accounts/"+a+"/credit", `{"amount":"100"}`)
	do(t, srv, http.MethodPost, "/accounts/"+a+"/debit", `{"amount":"30"}`)

	today := time.Now().UTC().Format(dateLayout)
	resp := do(t, srv, http.MethodGet, "/accounts/"+a+"/statement?start="+today+"&end="+today, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]StatementEntry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "CREDIT", entries[0].Kind)
	assert.Equal(t, "DEBIT", entries[1].Kind)
	assert.True(t, entries[1].Amount.Equal(decimal.RequireFromString("30")))

	resp = do(t, srv, http.MethodGet, "/accounts/"+a+"/statement?start=yesterday&end="+today, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/accounts/2024000000/statement?start="+today+"&end="+today, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMovementLookup(t *testing.T) {
	srv := newTestServer(t)
	a := openAccount(t, srv, "Alice", "alice@example.com")
	b := openAccount(t, srv, "Bob", "bob@example.com")
	do(t, srv, http.MethodPost, "/accounts/"+a+"/credit", `{"amount":"100"}`)
	do(t, srv, http.MethodPost, "/transfers", TransferRequest{SourceAccountNumber: a, DestinationAccountNumber: b, Amount: decimal.RequireFromString("25")})

	today := time.Now().UTC().Format(dateLayout)
	resp := do(t, srv, http.MethodGet, "/accounts/"+b+"/statement?start="+today+"&end="+today, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]StatementEntry](t, resp)
	require.Len(t, entries, 1)

	resp = do(t, srv, http.MethodGet, "/movements/"+entries[0].MovementID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	legs := decode[[]StatementEntry](t, resp)
	require.Len(t, legs, 2)
	assert.ElementsMatch(t, []string{a, b}, []string{legs[0].AccountNumber, legs[1].AccountNumber})

	resp = do(t, srv, http.MethodGet, "/movements/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type failingBanking struct {
	banking.BankingService
}

func (failingBanking) Credit(context.Context, string, decimal.Decimal) (*domain.MoneyMovementResult, error) {
	return nil, domain.NewInfrastructureError("CREDIT", errors.New("connection refused"))
}

func TestInfrastructureErrorIsInternal(t *testing.T) {
	srv := serve(t, failingBanking{})

	resp := do(t, srv, http.MethodPost, "/accounts/123/credit", `{"amount":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decode[ErrorResponse](t, resp).Error)
}

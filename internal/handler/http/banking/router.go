package banking_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/app/banking"
)

func RegisterRoutes(r chi.Router, s banking.BankingService, l *zap.Logger) {
	handler := NewBankingHandler(s, l.With(zap.String("component", "BankingHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Banking service is healthy!"))
		})
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.OpenAccountHandler)
		r.Get("/", handler.ListAccountsHandler)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", handler.BalanceEnquiryHandler)
			r.Delete("/", handler.CloseAccountHandler)
			r.Get("/name", handler.NameEnquiryHandler)
			r.Get("/statement", handler.StatementHandler)
			r.Post("/credit", handler.CreditHandler)
			r.Post("/debit", handler.DebitHandler)
		})
	})

	r.Post("/transfers", handler.TransferHandler)
	r.Get("/movements/{id}", handler.MovementHandler)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/transaction"
)

// RegisterTransactionRoutes wires money movement and history endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler, lh *ledger.Handler) {
	r.Post("/transfers", h.Transfer)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/payments", h.Pay)
	r.Post("/payment-requests", h.RequestPayment)
	r.Post("/payment-requests/confirm", h.ConfirmPayment)

	r.Get("/transactions", lh.List)
	r.Get("/transactions/:transactionId", lh.Get)
	r.Get("/accounts/:accountId/transactions", lh.ListByAccount)
}

package transaction

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// Handler exposes the money movement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	SenderID       int64           `json:"sender_id"`
	ReceiverID     int64           `json:"receiver_id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Transfer processes a wallet-to-wallet transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

type movementRequest struct {
	AccountID      int64           `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Deposit credits an account wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.service.Deposit(c.UserContext(), DepositInput{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

// Withdraw debits an account wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

// Pay processes a merchant payment. Business failures come back in the
// response body with success=false rather than as HTTP errors.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res := h.service.Pay(c.UserContext(), PayInput{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})

	body := fiber.Map{"success": res.Success}
	if res.TransactionID != 0 {
		body["transaction_id"] = res.TransactionID
	}
	if res.Success {
		body["balance_remaining"] = res.BalanceRemaining
		body["points_earned"] = res.PointsEarned
	} else {
		body["message"] = res.Message
		if res.Message == "Insufficient Balance" {
			body["balance_remaining"] = res.BalanceRemaining
		}
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(body)
}

type paymentRequestRequest struct {
	AccountID      int64           `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	ExternalID     string          `json:"external_id"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        string          `json:"payload"`
}

// RequestPayment reserves a pending external payment.
func (h *Handler) RequestPayment(c *fiber.Ctx) error {
	var req paymentRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.service.RequestPayment(c.UserContext(), PaymentRequestInput{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		ExternalID:     req.ExternalID,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Payload:        req.Payload,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entry)
}

type confirmRequest struct {
	IdempotencyKey    string `json:"idempotency_key"`
	ProviderReference string `json:"provider_reference"`
}

// ConfirmPayment settles a pending payment request.
func (h *Handler) ConfirmPayment(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.service.ConfirmPayment(c.UserContext(), req.IdempotencyKey, req.ProviderReference)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(entry)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, wallet.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ledger.ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, "transaction is not pending")
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		return fiber.NewError(http.StatusConflict, "duplicate request currently processing")
	case errors.Is(err, store.ErrLockNotAvailable):
		return fiber.NewError(http.StatusServiceUnavailable, "wallet busy, retry the request")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

package transaction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/notification"
)

// externalPayMethod tags payment requests settled by an outside provider.
const externalPayMethod = "external"

// PaymentRequestInput captures a reservation for an incoming external payment.
// AccountID is optional: zero means the payer is not yet known and
// confirmation will not credit any wallet.
type PaymentRequestInput struct {
	AccountID      int64
	Amount         decimal.Decimal
	ExternalID     string
	Description    string
	IdempotencyKey string
	Payload        string
}

// RequestPayment reserves an incoming payment as a pending deposit entry.
// No wallet lock is taken and no balance changes until ConfirmPayment.
// Replaying the same idempotency key returns the existing entry whatever its
// status, since creating the reservation is the whole effect.
func (s *Service) RequestPayment(ctx context.Context, input PaymentRequestInput) (ledger.Entry, error) {
	if !input.Amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	if input.IdempotencyKey != "" {
		prior, err := uow.Ledger().FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return prior, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return ledger.Entry{}, err
		}
	}

	entry := ledger.Entry{
		AccountID:      input.AccountID,
		Amount:         input.Amount,
		Kind:           ledger.KindDeposit,
		Status:         ledger.StatusPending,
		PaymentMethod:  externalPayMethod,
		Description:    input.Description,
		ExternalID:     input.ExternalID,
		Payload:        input.Payload,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	entry.ID, err = uow.Ledger().Append(ctx, entry)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			_ = uow.Rollback(ctx)
			return s.replayWinner(ctx, input.IdempotencyKey)
		}
		return ledger.Entry{}, err
	}

	if err := uow.Commit(ctx); err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

// ConfirmPayment settles a pending payment request by idempotency key: the
// entry flips to completed exactly once and, when an account is attached, its
// wallet is credited in the same unit of work. Confirming an already
// completed request is a no-op returning the existing entry.
func (s *Service) ConfirmPayment(ctx context.Context, idempotencyKey, providerReference string) (ledger.Entry, error) {
	if idempotencyKey == "" {
		return ledger.Entry{}, fmt.Errorf("%w: empty idempotency key", ledger.ErrNotFound)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	entry, err := uow.Ledger().FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.Status == ledger.StatusCompleted {
		return entry, nil
	}

	if err := uow.Ledger().MarkCompleted(ctx, entry.ID); err != nil {
		return ledger.Entry{}, err
	}
	if providerReference != "" {
		if err := uow.Ledger().SetProviderReference(ctx, entry.ID, providerReference); err != nil {
			return ledger.Entry{}, err
		}
		entry.ProviderReference = providerReference
	}

	if entry.AccountID != 0 {
		if _, err := uow.Wallets().GetOrCreateForUpdate(ctx, entry.AccountID); err != nil {
			return ledger.Entry{}, err
		}
		if err := uow.Wallets().AdjustBalance(ctx, entry.AccountID, entry.Amount); err != nil {
			return ledger.Entry{}, err
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return ledger.Entry{}, err
	}
	entry.Status = ledger.StatusCompleted

	if s.notifier != nil && entry.AccountID != 0 {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentConfirmed,
			Destination: strconv.FormatInt(entry.AccountID, 10),
			Body:        "Your payment of " + entry.Amount.String() + " was confirmed",
		})
	}

	return entry, nil
}

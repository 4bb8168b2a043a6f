package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// PayInput captures the data needed for a merchant payment.
type PayInput struct {
	AccountID      int64
	Amount         decimal.Decimal
	PaymentMethod  string
	Description    string
	IdempotencyKey string
}

// PayResult is the discriminated outcome of Pay. Business failures set
// Success false with a message; they are never raised as errors.
type PayResult struct {
	Success          bool
	TransactionID    int64
	BalanceRemaining decimal.Decimal
	PointsEarned     int64
	Message          string
}

// Pay debits the wallet like a withdrawal and accrues loyalty points in the
// same unit of work: one point per 10000 spent. Every failure, including
// storage errors, is folded into the result after the unit of work is rolled
// back; Pay never returns an error to its caller.
func (s *Service) Pay(ctx context.Context, input PayInput) PayResult {
	if !input.Amount.IsPositive() {
		return PayResult{Message: "Amount must be greater than zero"}
	}
	method := input.PaymentMethod
	if method == "" {
		method = defaultPayMethod
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return s.payFailure(err)
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	if prior, ok, err := s.resolveReplay(ctx, uow, input.IdempotencyKey); err != nil {
		return s.payFailure(err)
	} else if ok {
		return s.payReplay(ctx, uow, prior)
	}

	w, err := uow.Wallets().GetForUpdate(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return PayResult{Message: "Wallet not found"}
		}
		return s.payFailure(err)
	}
	if w.Balance.LessThan(input.Amount) {
		return PayResult{BalanceRemaining: w.Balance, Message: "Insufficient Balance"}
	}

	if err := uow.Wallets().AdjustBalance(ctx, input.AccountID, input.Amount.Neg()); err != nil {
		return s.payFailure(err)
	}

	points := input.Amount.Div(pointsDivisor).Floor().IntPart()
	if points > 0 {
		if err := uow.Wallets().AddPoints(ctx, input.AccountID, points); err != nil {
			return s.payFailure(err)
		}
	}

	entry := ledger.Entry{
		AccountID:      input.AccountID,
		Amount:         input.Amount,
		Kind:           ledger.KindWithdraw,
		Status:         ledger.StatusCompleted,
		PaymentMethod:  method,
		Description:    input.Description,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	entry.ID, err = uow.Ledger().Append(ctx, entry)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			_ = uow.Rollback(ctx)
			winner, werr := s.replayWinner(ctx, input.IdempotencyKey)
			if werr != nil {
				return s.payFailure(werr)
			}
			ruow, rerr := s.store.Begin(ctx)
			if rerr != nil {
				return PayResult{Success: true, TransactionID: winner.ID}
			}
			defer ruow.Rollback(ctx) // nolint:errcheck
			return s.payReplay(ctx, ruow, winner)
		}
		return s.payFailure(err)
	}

	if err := uow.Commit(ctx); err != nil {
		return s.payFailure(err)
	}

	return PayResult{
		Success:          true,
		TransactionID:    entry.ID,
		BalanceRemaining: w.Balance.Sub(input.Amount),
		PointsEarned:     points,
	}
}

// payReplay reports a prior successful payment. The wallet is re-read so the
// result carries the current balance rather than a zero value; the points
// reflect what the prior entry earned.
func (s *Service) payReplay(ctx context.Context, uow store.UnitOfWork, prior ledger.Entry) PayResult {
	res := PayResult{
		Success:       true,
		TransactionID: prior.ID,
		PointsEarned:  prior.Amount.Div(pointsDivisor).Floor().IntPart(),
	}
	if w, err := uow.Wallets().GetForUpdate(ctx, prior.AccountID); err == nil {
		res.BalanceRemaining = w.Balance
	}
	return res
}

func (s *Service) payFailure(err error) PayResult {
	if s.logger != nil {
		s.logger.Error("payment processing failed", "error", err)
	}
	return PayResult{Message: "Payment processing error: " + err.Error()}
}

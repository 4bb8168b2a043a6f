package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/notification"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

var (
	// ErrInvalidAmount occurs when an operation is requested with a
	// non-positive amount. Nothing is written before this check.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance occurs when a debit exceeds the wallet balance.
	// The unit of work is rolled back leaving the balance untouched.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// defaultPayMethod tags merchant payments that do not specify a method.
const defaultPayMethod = "food_delivery"

// pointsDivisor converts spend into loyalty points: one point per 10000 spent.
var pointsDivisor = decimal.NewFromInt(10000)

// Service executes every balance-affecting operation as one all-or-nothing
// unit of work spanning the wallet and ledger stores. It is the only component
// that opens units of work touching both.
type Service struct {
	store    store.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the transaction executor.
func NewService(st store.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: st, notifier: notifier, logger: logger}
}

// TransferInput captures the data needed to move funds between two wallets.
type TransferInput struct {
	SenderID       int64
	ReceiverID     int64
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// Transfer debits the sender, credits the receiver and records one completed
// ledger entry, all inside a single unit of work. Wallets are created lazily
// for both sides; locks are taken in ascending account order so two
// opposite-direction transfers between the same pair cannot deadlock.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.Entry, error) {
	if !input.Amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	if prior, ok, err := s.resolveReplay(ctx, uow, input.IdempotencyKey); err != nil {
		return ledger.Entry{}, err
	} else if ok {
		return prior, nil
	}

	wallets := uow.Wallets()
	locked := make(map[int64]wallet.Wallet, 2)
	for _, id := range lockOrder(input.SenderID, input.ReceiverID) {
		w, err := wallets.GetOrCreateForUpdate(ctx, id)
		if err != nil {
			return ledger.Entry{}, err
		}
		locked[id] = w
	}

	if locked[input.SenderID].Balance.LessThan(input.Amount) {
		return ledger.Entry{}, ErrInsufficientBalance
	}

	if err := wallets.AdjustBalance(ctx, input.SenderID, input.Amount.Neg()); err != nil {
		return ledger.Entry{}, err
	}
	if err := wallets.AdjustBalance(ctx, input.ReceiverID, input.Amount); err != nil {
		return ledger.Entry{}, err
	}

	entry := ledger.Entry{
		AccountID:      input.SenderID,
		Amount:         input.Amount,
		Kind:           ledger.KindTransfer,
		Status:         ledger.StatusCompleted,
		CounterpartyID: input.ReceiverID,
		Description:    input.Description,
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

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: strconv.FormatInt(input.ReceiverID, 10),
			Body:        fmt.Sprintf("You received %s from account %d", input.Amount, input.SenderID),
		})
	}

	return entry, nil
}

// DepositInput captures the data needed to credit a wallet.
type DepositInput struct {
	AccountID      int64
	Amount         decimal.Decimal
	PaymentMethod  string
	Description    string
	IdempotencyKey string
}

// Deposit credits the wallet, creating it lazily, and records a completed
// deposit entry.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (ledger.Entry, error) {
	if !input.Amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	if prior, ok, err := s.resolveReplay(ctx, uow, input.IdempotencyKey); err != nil {
		return ledger.Entry{}, err
	} else if ok {
		return prior, nil
	}

	if _, err := uow.Wallets().GetOrCreateForUpdate(ctx, input.AccountID); err != nil {
		return ledger.Entry{}, err
	}
	if err := uow.Wallets().AdjustBalance(ctx, input.AccountID, input.Amount); err != nil {
		return ledger.Entry{}, err
	}

	entry := ledger.Entry{
		AccountID:      input.AccountID,
		Amount:         input.Amount,
		Kind:           ledger.KindDeposit,
		Status:         ledger.StatusCompleted,
		PaymentMethod:  input.PaymentMethod,
		Description:    input.Description,
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

// WithdrawInput captures the data needed to debit a wallet.
type WithdrawInput struct {
	AccountID      int64
	Amount         decimal.Decimal
	PaymentMethod  string
	Description    string
	IdempotencyKey string
}

// Withdraw debits the wallet and records a completed withdrawal entry. Unlike
// Deposit it never creates the wallet: withdrawing from an account that has no
// wallet fails with wallet.ErrNotFound.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (ledger.Entry, error) {
	if !input.Amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	if prior, ok, err := s.resolveReplay(ctx, uow, input.IdempotencyKey); err != nil {
		return ledger.Entry{}, err
	} else if ok {
		return prior, nil
	}

	w, err := uow.Wallets().GetForUpdate(ctx, input.AccountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if w.Balance.LessThan(input.Amount) {
		return ledger.Entry{}, ErrInsufficientBalance
	}
	if err := uow.Wallets().AdjustBalance(ctx, input.AccountID, input.Amount.Neg()); err != nil {
		return ledger.Entry{}, err
	}

	entry := ledger.Entry{
		AccountID:      input.AccountID,
		Amount:         input.Amount,
		Kind:           ledger.KindWithdraw,
		Status:         ledger.StatusCompleted,
		PaymentMethod:  input.PaymentMethod,
		Description:    input.Description,
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

// lockOrder returns the distinct account identifiers in ascending order, the
// canonical lock acquisition order for multi-wallet operations.
func lockOrder(a, b int64) []int64 {
	switch {
	case a == b:
		return []int64{a}
	case a < b:
		return []int64{a, b}
	default:
		return []int64{b, a}
	}
}

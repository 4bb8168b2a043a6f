package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no wallet exists for the requested account.
var ErrNotFound = errors.New("wallet not found")

// Wallet holds the mutable balance and loyalty points for one account.
// Balance never goes below zero in any committed state.
type Wallet struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Points    int64           `json:"points"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TxStore is the wallet contract bound to an open unit of work. GetForUpdate
// and GetOrCreateForUpdate take an exclusive row lock held until the unit of
// work commits or rolls back; mutations are only valid after the lock is held.
type TxStore interface {
	GetForUpdate(ctx context.Context, accountID int64) (Wallet, error)
	GetOrCreateForUpdate(ctx context.Context, accountID int64) (Wallet, error)
	AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
	AddPoints(ctx context.Context, accountID int64, delta int64) error
}

// Reader serves read-only wallet lookups outside any unit of work.
type Reader interface {
	Get(ctx context.Context, accountID int64) (Wallet, error)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no ledger entry matches the requested identifier or key.
	ErrNotFound = errors.New("ledger entry not found")

	// ErrDuplicateIdempotencyKey occurs when an insert collides with an existing
	// idempotency key. Callers should re-read the winning entry instead of failing.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidTransition indicates an attempt to complete an entry that is not pending.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the lifecycle state of a ledger entry. Completed is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Kind classifies a money movement. Payments are recorded as withdrawals
// tagged with their payment method.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// ParseKind validates a raw kind value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTransfer, KindDeposit, KindWithdraw:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Entry is an append-once record of one money movement. Once written, the only
// permitted mutation is the one-time pending to completed status flip.
type Entry struct {
	ID                int64           `json:"transaction_id"`
	AccountID         int64           `json:"account_id,omitempty"` // zero when the payer is external and not yet known
	Amount            decimal.Decimal `json:"amount"`
	Kind              Kind            `json:"kind"`
	Status            Status          `json:"status"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	CounterpartyID    int64           `json:"counterparty_id,omitempty"` // receiving account for transfers
	Description       string          `json:"description,omitempty"`
	ExternalID        string          `json:"external_id,omitempty"`
	Payload           string          `json:"payload,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TxStore is the ledger contract bound to an open unit of work. Append inserts
// a new record and returns its assigned identifier; it fails with
// ErrDuplicateIdempotencyKey when the entry carries a key that already exists.
type TxStore interface {
	Append(ctx context.Context, entry Entry) (int64, error)
	FindByID(ctx context.Context, id int64) (Entry, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Entry, error)
	MarkCompleted(ctx context.Context, id int64) error
	SetProviderReference(ctx context.Context, id int64, reference string) error
}

// Reader serves read-only listing queries outside any unit of work.
type Reader interface {
	FindByID(ctx context.Context, id int64) (Entry, error)
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]Entry, error)
	ListByKind(ctx context.Context, accountID int64, kind Kind, limit, offset int) ([]Entry, error)
	ListAll(ctx context.Context, limit, offset int) ([]Entry, error)
}

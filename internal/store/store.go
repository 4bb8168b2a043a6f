package store

import (
	"context"
	"errors"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// ErrLockNotAvailable occurs when a unit of work cannot acquire a wallet row
// lock within the configured wait, or loses a deadlock race. The unit of work
// is rolled back and the operation is safe to retry.
var ErrLockNotAvailable = errors.New("lock wait aborted")

// Store opens units of work spanning the wallet and ledger tables.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is one atomic session over both stores. Writes made through it
// become visible together on Commit and are discarded on Rollback. Rollback
// after a successful Commit is a no-op, so it is safe to defer.
type UnitOfWork interface {
	Wallets() wallet.TxStore
	Ledger() ledger.TxStore
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// Postgres opens pgx transactions as units of work. Every transaction runs
// with a bounded lock_timeout so a blocked wallet lock surfaces
// ErrLockNotAvailable instead of hanging.
type Postgres struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgres builds a Postgres-backed store.
func NewPostgres(db *pgxpool.Pool, lockTimeout time.Duration) *Postgres {
	return &Postgres{db: db, lockTimeout: lockTimeout}
}

// Begin opens a transaction and applies the lock timeout to it.
func (s *Postgres) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if s.lockTimeout > 0 {
		// SET LOCAL does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return &pgUnitOfWork{tx: tx}, nil
}

type pgUnitOfWork struct {
	tx pgx.Tx
}

func (u *pgUnitOfWork) Wallets() wallet.TxStore { return &pgWalletTx{tx: u.tx} }

func (u *pgUnitOfWork) Ledger() ledger.TxStore { return &pgLedgerTx{tx: u.tx} }

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	return mapPgError(u.tx.Commit(ctx))
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

type pgWalletTx struct {
	tx pgx.Tx
}

const walletForUpdate = `SELECT account_id, balance, points, created_at, updated_at
        FROM wallets WHERE account_id = $1 FOR UPDATE`

func (w *pgWalletTx) GetForUpdate(ctx context.Context, accountID int64) (wallet.Wallet, error) {
	return w.selectForUpdate(ctx, accountID)
}

func (w *pgWalletTx) GetOrCreateForUpdate(ctx context.Context, accountID int64) (wallet.Wallet, error) {
	got, err := w.selectForUpdate(ctx, accountID)
	if err == nil {
		return got, nil
	}
	if !errors.Is(err, wallet.ErrNotFound) {
		return wallet.Wallet{}, err
	}
	// Concurrent first-touch of the same account is resolved by the conflict
	// clause; the re-select then locks whichever row won.
	if _, err := w.tx.Exec(ctx, `INSERT INTO wallets (account_id) VALUES ($1)
        ON CONFLICT (account_id) DO NOTHING`, accountID); err != nil {
		return wallet.Wallet{}, mapPgError(err)
	}
	return w.selectForUpdate(ctx, accountID)
}

func (w *pgWalletTx) selectForUpdate(ctx context.Context, accountID int64) (wallet.Wallet, error) {
	row := w.tx.QueryRow(ctx, walletForUpdate, accountID)
	var got wallet.Wallet
	if err := row.Scan(&got.AccountID, &got.Balance, &got.Points, &got.CreatedAt, &got.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Wallet{}, wallet.ErrNotFound
		}
		return wallet.Wallet{}, mapPgError(err)
	}
	got.CreatedAt = got.CreatedAt.UTC()
	got.UpdatedAt = got.UpdatedAt.UTC()
	return got, nil
}

func (w *pgWalletTx) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	tag, err := w.tx.Exec(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now()
        WHERE account_id = $1`, accountID, delta)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrNotFound
	}
	return nil
}

func (w *pgWalletTx) AddPoints(ctx context.Context, accountID int64, delta int64) error {
	tag, err := w.tx.Exec(ctx, `UPDATE wallets SET points = points + $2, updated_at = now()
        WHERE account_id = $1`, accountID, delta)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrNotFound
	}
	return nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

func (l *pgLedgerTx) Append(ctx context.Context, entry ledger.Entry) (int64, error) {
	var id int64
	err := l.tx.QueryRow(ctx, `INSERT INTO transactions
        (account_id, amount, kind, status, payment_method, counterparty_id,
         description, external_id, payload, idempotency_key, provider_reference, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING transaction_id`,
		nullIfZero(entry.AccountID), entry.Amount, string(entry.Kind), string(entry.Status),
		nullIfEmpty(entry.PaymentMethod), nullIfZero(entry.CounterpartyID),
		nullIfEmpty(entry.Description), nullIfEmpty(entry.ExternalID),
		nullIfEmpty(entry.Payload), nullIfEmpty(entry.IdempotencyKey),
		nullIfEmpty(entry.ProviderReference), entry.CreatedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (l *pgLedgerTx) FindByID(ctx context.Context, id int64) (ledger.Entry, error) {
	row := l.tx.QueryRow(ctx, `SELECT `+ledger.EntryColumns+` FROM transactions
        WHERE transaction_id = $1`, id)
	return ledger.ScanEntry(row)
}

func (l *pgLedgerTx) FindByIdempotencyKey(ctx context.Context, key string) (ledger.Entry, error) {
	row := l.tx.QueryRow(ctx, `SELECT `+ledger.EntryColumns+` FROM transactions
        WHERE idempotency_key = $1`, key)
	return ledger.ScanEntry(row)
}

func (l *pgLedgerTx) MarkCompleted(ctx context.Context, id int64) error {
	tag, err := l.tx.Exec(ctx, `UPDATE transactions SET status = 'completed'
        WHERE transaction_id = $1 AND status = 'pending'`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrInvalidTransition
	}
	return nil
}

func (l *pgLedgerTx) SetProviderReference(ctx context.Context, id int64, reference string) error {
	tag, err := l.tx.Exec(ctx, `UPDATE transactions SET provider_reference = $2
        WHERE transaction_id = $1`, id, reference)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateIdempotencyKey, pgErr.ConstraintName)
		case pgLockNotAvailable, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrLockNotAvailable, pgErr.Message)
		}
	}
	return err
}

func nullIfZero(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReader fetches wallet snapshots straight from the pool.
type PostgresReader struct {
	db *pgxpool.Pool
}

// NewPostgresReader builds a read-only wallet view backed by PostgreSQL.
func NewPostgresReader(db *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{db: db}
}

// Get fetches the wallet for an account.
func (r *PostgresReader) Get(ctx context.Context, accountID int64) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT account_id, balance, points, created_at, updated_at
        FROM wallets WHERE account_id = $1`, accountID)
	var w Wallet
	if err := row.Scan(&w.AccountID, &w.Balance, &w.Points, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

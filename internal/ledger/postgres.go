package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntryColumns is the select list ScanEntry expects, shared with the
// transactional store.
const EntryColumns = `transaction_id, COALESCE(account_id, 0), amount, kind, status,
        COALESCE(payment_method, ''), COALESCE(counterparty_id, 0), COALESCE(description, ''),
        COALESCE(external_id, ''), COALESCE(payload, ''), COALESCE(idempotency_key, ''),
        COALESCE(provider_reference, ''), created_at`

// PostgresReader serves listing queries straight from the pool. Mutations go
// through a unit of work instead.
type PostgresReader struct {
	db *pgxpool.Pool
}

// NewPostgresReader builds a read-only ledger view backed by PostgreSQL.
func NewPostgresReader(db *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{db: db}
}

// FindByID fetches a single entry by its assigned identifier.
func (r *PostgresReader) FindByID(ctx context.Context, id int64) (Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+EntryColumns+` FROM transactions WHERE transaction_id = $1`, id)
	return ScanEntry(row)
}

// ListByAccount returns entries where the account is the actor or the
// counterparty, newest first.
func (r *PostgresReader) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+EntryColumns+` FROM transactions
        WHERE account_id = $1 OR counterparty_id = $1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListByKind returns an account's entries of one kind, newest first.
func (r *PostgresReader) ListByKind(ctx context.Context, accountID int64, kind Kind, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+EntryColumns+` FROM transactions
        WHERE account_id = $1 AND kind = $2
        ORDER BY created_at DESC LIMIT $3 OFFSET $4`, accountID, string(kind), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListAll returns entries across all accounts, newest first.
func (r *PostgresReader) ListAll(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+EntryColumns+` FROM transactions
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ScanEntry decodes one transactions row in EntryColumns order.
func ScanEntry(row pgx.Row) (Entry, error) {
	var (
		e         Entry
		rawKind   string
		rawStatus string
	)
	err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &rawKind, &rawStatus,
		&e.PaymentMethod, &e.CounterpartyID, &e.Description,
		&e.ExternalID, &e.Payload, &e.IdempotencyKey,
		&e.ProviderReference, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if e.Kind, err = ParseKind(rawKind); err != nil {
		return Entry{}, err
	}
	if e.Status, err = ParseStatus(rawStatus); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := ScanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
)

// resolveReplay checks whether a prior call with the same idempotency key
// already completed. A completed match short-circuits the operation; a pending
// match or no key at all lets the operation proceed, and the unique constraint
// on the key settles any remaining race at append time.
func (s *Service) resolveReplay(ctx context.Context, uow store.UnitOfWork, key string) (ledger.Entry, bool, error) {
	if key == "" {
		return ledger.Entry{}, false, nil
	}
	prior, err := uow.Ledger().FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, err
	}
	if prior.Status != ledger.StatusCompleted {
		return ledger.Entry{}, false, nil
	}
	return prior, true, nil
}

// replayWinner re-reads the entry that won a concurrent first-use race on an
// idempotency key, after the losing unit of work has been rolled back. If the
// winner has not committed yet the read misses and the duplicate error is
// surfaced so the caller can retry.
func (s *Service) replayWinner(ctx context.Context, key string) (ledger.Entry, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer uow.Rollback(ctx) // nolint:errcheck

	winner, err := uow.Ledger().FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Entry{}, fmt.Errorf("%w: concurrent use of key %q", ledger.ErrDuplicateIdempotencyKey, key)
		}
		return ledger.Entry{}, err
	}
	return winner, nil
}

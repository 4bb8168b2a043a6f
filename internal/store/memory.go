package store

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// Memory is an in-memory store for unit tests and local development without
// PostgreSQL. Units of work are serialized by a single mutex held from Begin
// until Commit or Rollback, so committed state is always consistent.
type Memory struct {
	mu      chanMutex
	wallets map[int64]wallet.Wallet
	entries map[int64]ledger.Entry
	byKey   map[string]int64
	lastID  int64
}

// chanMutex is a mutex usable across goroutines on lock and unlock.
type chanMutex chan struct{}

func (m chanMutex) lock()   { m <- struct{}{} }
func (m chanMutex) unlock() { <-m }

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		mu:      make(chanMutex, 1),
		wallets: make(map[int64]wallet.Wallet),
		entries: make(map[int64]ledger.Entry),
		byKey:   make(map[string]int64),
	}
}

// Begin acquires the store lock and returns a unit of work staging its writes
// until Commit. The wait for the lock is bounded by the context.
func (s *Memory) Begin(ctx context.Context) (UnitOfWork, error) {
	select {
	case s.mu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memUnitOfWork{
		store:    s,
		wallets:  make(map[int64]wallet.Wallet),
		statuses: make(map[int64]ledger.Status),
		refs:     make(map[int64]string),
		nextID:   s.lastID,
	}, nil
}

// Get implements wallet.Reader over committed state.
func (s *Memory) Get(_ context.Context, accountID int64) (wallet.Wallet, error) {
	s.mu.lock()
	defer s.mu.unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return wallet.Wallet{}, wallet.ErrNotFound
	}
	return w, nil
}

// FindByID implements ledger.Reader over committed state.
func (s *Memory) FindByID(_ context.Context, id int64) (ledger.Entry, error) {
	s.mu.lock()
	defer s.mu.unlock()
	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

// ListByAccount returns committed entries where the account is the actor or
// counterparty, newest first.
func (s *Memory) ListByAccount(_ context.Context, accountID int64, limit, offset int) ([]ledger.Entry, error) {
	return s.list(limit, offset, func(e ledger.Entry) bool {
		return e.AccountID == accountID || e.CounterpartyID == accountID
	})
}

// ListByKind returns an account's committed entries of one kind, newest first.
func (s *Memory) ListByKind(_ context.Context, accountID int64, kind ledger.Kind, limit, offset int) ([]ledger.Entry, error) {
	return s.list(limit, offset, func(e ledger.Entry) bool {
		return e.AccountID == accountID && e.Kind == kind
	})
}

// ListAll returns all committed entries, newest first.
func (s *Memory) ListAll(_ context.Context, limit, offset int) ([]ledger.Entry, error) {
	return s.list(limit, offset, func(ledger.Entry) bool { return true })
}

func (s *Memory) list(limit, offset int, match func(ledger.Entry) bool) ([]ledger.Entry, error) {
	s.mu.lock()
	defer s.mu.unlock()

	var entries []ledger.Entry
	for _, e := range s.entries {
		if match(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})

	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

type memUnitOfWork struct {
	store    *Memory
	wallets  map[int64]wallet.Wallet
	appended []ledger.Entry
	statuses map[int64]ledger.Status
	refs     map[int64]string
	nextID   int64
	done     bool
}

func (u *memUnitOfWork) Wallets() wallet.TxStore { return &memWalletTx{uow: u} }

func (u *memUnitOfWork) Ledger() ledger.TxStore { return &memLedgerTx{uow: u} }

func (u *memUnitOfWork) Commit(_ context.Context) error {
	if u.done {
		return nil
	}
	s := u.store
	for id, w := range u.wallets {
		s.wallets[id] = w
	}
	for _, e := range u.appended {
		s.entries[e.ID] = e
		if e.IdempotencyKey != "" {
			s.byKey[e.IdempotencyKey] = e.ID
		}
	}
	for id, status := range u.statuses {
		e := s.entries[id]
		e.Status = status
		s.entries[id] = e
	}
	for id, ref := range u.refs {
		e := s.entries[id]
		e.ProviderReference = ref
		s.entries[id] = e
	}
	s.lastID = u.nextID
	u.done = true
	s.mu.unlock()
	return nil
}

func (u *memUnitOfWork) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.mu.unlock()
	return nil
}

func (u *memUnitOfWork) walletFor(accountID int64) (wallet.Wallet, bool) {
	if w, ok := u.wallets[accountID]; ok {
		return w, true
	}
	w, ok := u.store.wallets[accountID]
	return w, ok
}

func (u *memUnitOfWork) entryFor(id int64) (ledger.Entry, bool) {
	for _, e := range u.appended {
		if e.ID == id {
			return u.withOverrides(e), true
		}
	}
	e, ok := u.store.entries[id]
	if !ok {
		return ledger.Entry{}, false
	}
	return u.withOverrides(e), true
}

func (u *memUnitOfWork) withOverrides(e ledger.Entry) ledger.Entry {
	if status, ok := u.statuses[e.ID]; ok {
		e.Status = status
	}
	if ref, ok := u.refs[e.ID]; ok {
		e.ProviderReference = ref
	}
	return e
}

type memWalletTx struct {
	uow *memUnitOfWork
}

func (w *memWalletTx) GetForUpdate(_ context.Context, accountID int64) (wallet.Wallet, error) {
	got, ok := w.uow.walletFor(accountID)
	if !ok {
		return wallet.Wallet{}, wallet.ErrNotFound
	}
	return got, nil
}

func (w *memWalletTx) GetOrCreateForUpdate(_ context.Context, accountID int64) (wallet.Wallet, error) {
	if got, ok := w.uow.walletFor(accountID); ok {
		return got, nil
	}
	now := time.Now().UTC()
	created := wallet.Wallet{AccountID: accountID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	w.uow.wallets[accountID] = created
	return created, nil
}

func (w *memWalletTx) AdjustBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	got, ok := w.uow.walletFor(accountID)
	if !ok {
		return wallet.ErrNotFound
	}
	got.Balance = got.Balance.Add(delta)
	got.UpdatedAt = time.Now().UTC()
	w.uow.wallets[accountID] = got
	return nil
}

func (w *memWalletTx) AddPoints(_ context.Context, accountID int64, delta int64) error {
	got, ok := w.uow.walletFor(accountID)
	if !ok {
		return wallet.ErrNotFound
	}
	got.Points += delta
	got.UpdatedAt = time.Now().UTC()
	w.uow.wallets[accountID] = got
	return nil
}

type memLedgerTx struct {
	uow *memUnitOfWork
}

func (l *memLedgerTx) Append(_ context.Context, entry ledger.Entry) (int64, error) {
	if entry.IdempotencyKey != "" {
		if _, exists := l.uow.store.byKey[entry.IdempotencyKey]; exists {
			return 0, ledger.ErrDuplicateIdempotencyKey
		}
		for _, staged := range l.uow.appended {
			if staged.IdempotencyKey == entry.IdempotencyKey {
				return 0, ledger.ErrDuplicateIdempotencyKey
			}
		}
	}
	l.uow.nextID++
	entry.ID = l.uow.nextID
	l.uow.appended = append(l.uow.appended, entry)
	return entry.ID, nil
}

func (l *memLedgerTx) FindByID(_ context.Context, id int64) (ledger.Entry, error) {
	e, ok := l.uow.entryFor(id)
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

func (l *memLedgerTx) FindByIdempotencyKey(_ context.Context, key string) (ledger.Entry, error) {
	for _, staged := range l.uow.appended {
		if staged.IdempotencyKey == key {
			return l.uow.withOverrides(staged), nil
		}
	}
	if id, ok := l.uow.store.byKey[key]; ok {
		e, _ := l.uow.entryFor(id)
		return e, nil
	}
	return ledger.Entry{}, ledger.ErrNotFound
}

func (l *memLedgerTx) MarkCompleted(_ context.Context, id int64) error {
	e, ok := l.uow.entryFor(id)
	if !ok || e.Status != ledger.StatusPending {
		return ledger.ErrInvalidTransition
	}
	l.uow.statuses[id] = ledger.StatusCompleted
	return nil
}

func (l *memLedgerTx) SetProviderReference(_ context.Context, id int64, reference string) error {
	if _, ok := l.uow.entryFor(id); !ok {
		return ledger.ErrNotFound
	}
	l.uow.refs[id] = reference
	return nil
}

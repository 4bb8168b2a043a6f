package store

import "github.com/shopspring/decimal"

// SeedWallet is a test helper that installs a wallet with the given balance
// and points when using the in-memory store.
func SeedWallet(s Store, accountID int64, balance decimal.Decimal, points int64) {
	if mem, ok := s.(*Memory); ok {
		mem.mu.lock()
		defer mem.mu.unlock()
		w := mem.wallets[accountID]
		w.AccountID = accountID
		w.Balance = balance
		w.Points = points
		mem.wallets[accountID] = w
	}
}

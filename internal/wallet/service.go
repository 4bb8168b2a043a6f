package wallet

import "context"

// Service exposes wallet read operations. Balance mutation happens only
// through the transaction executor's units of work.
type Service struct {
	reader Reader
}

// NewService builds a wallet service instance.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Get retrieves the current wallet snapshot for an account.
func (s *Service) Get(ctx context.Context, accountID int64) (Wallet, error) {
	return s.reader.Get(ctx, accountID)
}

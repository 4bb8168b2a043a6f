package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/logging"
	"github.com/rrvaldoo/DOSWALLET/internal/notification"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

type testNotifier struct {
	mu   sync.Mutex
	last notification.Message
	sent int
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	n.sent++
	return nil
}

func newTestService() (*Service, *store.Memory, *testNotifier) {
	mem := store.NewMemory()
	notifier := &testNotifier{}
	return NewService(mem, notifier, logging.Discard()), mem, notifier
}

func mustBalance(t *testing.T, mem *store.Memory, accountID int64) decimal.Decimal {
	t.Helper()
	w, err := mem.Get(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get wallet %d: %v", accountID, err)
	}
	return w.Balance
}

func TestTransferConservesBalance(t *testing.T) {
	svc, mem, notifier := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 1, decimal.NewFromInt(10_000), 0)

	entry, err := svc.Transfer(ctx, TransferInput{SenderID: 1, ReceiverID: 2, Amount: decimal.NewFromInt(1_500)})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if entry.Kind != ledger.KindTransfer || entry.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.CounterpartyID != 2 {
		t.Fatalf("expected counterparty 2, got %d", entry.CounterpartyID)
	}

	sender := mustBalance(t, mem, 1)
	receiver := mustBalance(t, mem, 2)
	if !sender.Equal(decimal.NewFromInt(8_500)) {
		t.Fatalf("expected sender balance 8500, got %s", sender)
	}
	if !receiver.Equal(decimal.NewFromInt(1_500)) {
		t.Fatalf("expected receiver balance 1500, got %s", receiver)
	}
	if total := sender.Add(receiver); !total.Equal(decimal.NewFromInt(10_000)) {
		t.Fatalf("money not conserved, total=%s", total)
	}

	if notifier.last.Kind != notification.KindTransferReceived {
		t.Fatalf("expected transfer notification, got %q", notifier.last.Kind)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 1, decimal.NewFromInt(100), 0)

	_, err := svc.Transfer(ctx, TransferInput{SenderID: 1, ReceiverID: 2, Amount: decimal.NewFromInt(500)})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	if balance := mustBalance(t, mem, 1); !balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("sender balance changed after failed transfer: %s", balance)
	}
	entries, err := mem.ListAll(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 1, decimal.NewFromInt(100), 0)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := svc.Transfer(ctx, TransferInput{SenderID: 1, ReceiverID: 2, Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", amount, err)
		}
	}

	if balance := mustBalance(t, mem, 1); !balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance changed after rejected transfers: %s", balance)
	}
}

func TestTransferIdempotentReplay(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 1, decimal.NewFromInt(1_000), 0)

	input := TransferInput{SenderID: 1, ReceiverID: 2, Amount: decimal.NewFromInt(250), IdempotencyKey: "T1"}
	first, err := svc.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := svc.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("replayed transfer: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("replay returned different transaction: %d vs %d", first.ID, second.ID)
	}
	if balance := mustBalance(t, mem, 1); !balance.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected one debit only, balance %s", balance)
	}
	entries, _ := mem.ListAll(ctx, 10, 0)
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
}

func TestTransferOppositeDirectionsConcurrently(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 1, decimal.NewFromInt(50_000), 0)
	store.SeedWallet(mem, 2, decimal.NewFromInt(50_000), 0)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := TransferInput{SenderID: 1, ReceiverID: 2, Amount: decimal.NewFromInt(100)}
			if i%2 == 1 {
				in.SenderID, in.ReceiverID = 2, 1
			}
			in.IdempotencyKey = fmt.Sprintf("opp-%d", i)
			if _, err := svc.Transfer(ctx, in); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := mustBalance(t, mem, 1).Add(mustBalance(t, mem, 2))
	if !total.Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("money not conserved under concurrency, total=%s", total)
	}
}

func TestDepositCreatesWalletLazily(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()

	entry, err := svc.Deposit(ctx, DepositInput{AccountID: 9, Amount: decimal.NewFromInt(100), PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if entry.Kind != ledger.KindDeposit || entry.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if balance := mustBalance(t, mem, 9); !balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", balance)
	}
}

func TestDepositIdempotentReplay(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()

	input := DepositInput{AccountID: 9, Amount: decimal.NewFromInt(100), IdempotencyKey: "D1"}
	first, err := svc.Deposit(ctx, input)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	second, err := svc.Deposit(ctx, input)
	if err != nil {
		t.Fatalf("replayed deposit: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("replay returned different transaction: %d vs %d", first.ID, second.ID)
	}
	if balance := mustBalance(t, mem, 9); !balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected exactly one credit, balance %s", balance)
	}
}

func TestWithdrawRequiresExistingWallet(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Withdraw(context.Background(), WithdrawInput{AccountID: 5, Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 5, decimal.NewFromInt(40), 0)

	_, err := svc.Withdraw(ctx, WithdrawInput{AccountID: 5, Amount: decimal.NewFromInt(50)})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if balance := mustBalance(t, mem, 5); !balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balance changed after failed withdrawal: %s", balance)
	}
	entries, _ := mem.ListAll(ctx, 10, 0)
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestLockOrder(t *testing.T) {
	if got := lockOrder(9, 3); got[0] != 3 || got[1] != 9 {
		t.Fatalf("expected ascending order, got %v", got)
	}
	if got := lockOrder(3, 9); got[0] != 3 || got[1] != 9 {
		t.Fatalf("expected ascending order, got %v", got)
	}
	if got := lockOrder(4, 4); len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected deduplicated ids, got %v", got)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 5, decimal.NewFromInt(500), 0)

	const workers = 10
	amount := decimal.NewFromInt(100)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Withdraw(ctx, WithdrawInput{AccountID: 5, Amount: amount})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
		default:
			t.Fatalf("unexpected withdraw error: %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected 5 successful withdrawals, got %d", succeeded)
	}

	balance := mustBalance(t, mem, 5)
	if balance.IsNegative() {
		t.Fatalf("balance went negative: %s", balance)
	}
	if !balance.Equal(decimal.Zero) {
		t.Fatalf("expected balance 0, got %s", balance)
	}
}

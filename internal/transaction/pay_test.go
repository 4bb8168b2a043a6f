package transaction

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
)

func TestPayDebitsWalletAndAccruesPoints(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 7, decimal.NewFromInt(30_000), 0)

	res := svc.Pay(ctx, PayInput{AccountID: 7, Amount: decimal.NewFromInt(25_000)})
	if !res.Success {
		t.Fatalf("pay failed: %q", res.Message)
	}
	if res.TransactionID == 0 {
		t.Fatal("expected a transaction id")
	}
	if !res.BalanceRemaining.Equal(decimal.NewFromInt(5_000)) {
		t.Fatalf("expected remaining balance 5000, got %s", res.BalanceRemaining)
	}
	if res.PointsEarned != 2 {
		t.Fatalf("expected 2 points earned, got %d", res.PointsEarned)
	}

	w, err := mem.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(5_000)) {
		t.Fatalf("expected balance 5000, got %s", w.Balance)
	}
	if w.Points != 2 {
		t.Fatalf("expected 2 points on wallet, got %d", w.Points)
	}

	entry, err := mem.FindByID(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("find entry: %v", err)
	}
	if entry.Kind != ledger.KindWithdraw || entry.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.PaymentMethod != "food_delivery" {
		t.Fatalf("expected default payment method, got %q", entry.PaymentMethod)
	}
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService()

	res := svc.Pay(context.Background(), PayInput{AccountID: 7, Amount: decimal.Zero})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Amount must be greater than zero" {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestPayWalletNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	res := svc.Pay(context.Background(), PayInput{AccountID: 404, Amount: decimal.NewFromInt(10)})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Wallet not found" {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestPayInsufficientBalance(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 7, decimal.NewFromInt(900), 0)

	res := svc.Pay(ctx, PayInput{AccountID: 7, Amount: decimal.NewFromInt(1_000)})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Insufficient Balance" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if !res.BalanceRemaining.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected reported balance 900, got %s", res.BalanceRemaining)
	}

	w, _ := mem.Get(ctx, 7)
	if !w.Balance.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("balance changed after failed payment: %s", w.Balance)
	}
}

func TestPaySmallAmountEarnsNoPoints(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 7, decimal.NewFromInt(10_000), 0)

	res := svc.Pay(ctx, PayInput{AccountID: 7, Amount: decimal.NewFromInt(9_999)})
	if !res.Success {
		t.Fatalf("pay failed: %q", res.Message)
	}
	if res.PointsEarned != 0 {
		t.Fatalf("expected no points, got %d", res.PointsEarned)
	}

	w, _ := mem.Get(ctx, 7)
	if w.Points != 0 {
		t.Fatalf("expected 0 points on wallet, got %d", w.Points)
	}
}

func TestPayIdempotentReplay(t *testing.T) {
	svc, mem, _ := newTestService()
	ctx := context.Background()
	store.SeedWallet(mem, 7, decimal.NewFromInt(50_000), 0)

	input := PayInput{AccountID: 7, Amount: decimal.NewFromInt(20_000), IdempotencyKey: "P1"}
	first := svc.Pay(ctx, input)
	if !first.Success {
		t.Fatalf("first pay failed: %q", first.Message)
	}
	second := svc.Pay(ctx, input)
	if !second.Success {
		t.Fatalf("replayed pay failed: %q", second.Message)
	}
	if first.TransactionID != second.TransactionID {
		t.Fatalf("replay returned different transaction: %d vs %d", first.TransactionID, second.TransactionID)
	}
	if !second.BalanceRemaining.Equal(decimal.NewFromInt(30_000)) {
		t.Fatalf("replay should report the current balance, got %s", second.BalanceRemaining)
	}
	if second.PointsEarned != 2 {
		t.Fatalf("replay should report the points the payment earned, got %d", second.PointsEarned)
	}

	w, _ := mem.Get(ctx, 7)
	if !w.Balance.Equal(decimal.NewFromInt(30_000)) {
		t.Fatalf("expected exactly one debit, balance %s", w.Balance)
	}
	if w.Points != 2 {
		t.Fatalf("expected points accrued once, got %d", w.Points)
	}
}

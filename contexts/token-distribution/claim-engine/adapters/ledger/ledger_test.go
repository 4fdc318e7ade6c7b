package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
)

var (
	token  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	holder = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func TestMemoryLedgerTransfer(t *testing.T) {
	ledger := NewMemoryLedger(holder, nil)
	ctx := context.Background()
	if err := ledger.Transfer(ctx, token, alice, big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := ledger.Mint(token, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(ctx, token, alice, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Transfer(ctx, token, alice, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	aliceBalance, err := ledger.BalanceOf(ctx, token, alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	holderBalance, err := ledger.BalanceOf(ctx, token, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBalance.Int64() != 60 || holderBalance.Int64() != 40 {
		t.Fatalf("unexpected balances alice=%s holder=%s", aliceBalance, holderBalance)
	}
	if err := ledger.Transfer(ctx, token, alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

type failingLedger struct {
	calls int
	err   error
}

func (f *failingLedger) Transfer(context.Context, common.Address, common.Address, *big.Int) error {
	f.calls++
	return f.err
}

func TestBreakerLedgerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingLedger{err: errors.New("rpc unavailable")}
	breaker := NewBreakerLedger(next, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := breaker.Transfer(ctx, token, alice, big.NewInt(1)); err == nil {
			t.Fatalf("expected failure %d to pass through", i)
		}
	}
	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open, got %s", breaker.State())
	}
	if err := breaker.Transfer(ctx, token, alice, big.NewInt(1)); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("expected open breaker to short-circuit, got %d calls", next.calls)
	}
}

func TestBreakerLedgerPassesBalanceThrough(t *testing.T) {
	memory := NewMemoryLedger(holder, nil)
	if err := memory.Mint(token, holder, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	breaker := NewBreakerLedger(memory, BreakerSettings{}, nil)
	balance, err := breaker.BalanceOf(context.Background(), token, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 5 {
		t.Fatalf("unexpected balance %s", balance)
	}
	if _, err := NewBreakerLedger(&failingLedger{}, BreakerSettings{}, nil).BalanceOf(context.Background(), token, holder); err == nil {
		t.Fatalf("expected balance to be unavailable for ledgers without BalanceOf")
	}
}

func TestNewERC20LedgerRequiresDependencies(t *testing.T) {
	if _, err := NewERC20Ledger(nil, nil, ERC20Settings{}, nil); err == nil {
		t.Fatalf("expected constructor to reject missing backend")
	}
}

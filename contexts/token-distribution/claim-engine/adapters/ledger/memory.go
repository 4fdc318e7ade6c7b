package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	application "merkledrop/contexts/token-distribution/claim-engine/application"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownToken        = errors.New("token is not known to the ledger")
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
)

// MemoryLedger keeps per-token balances in process. Transfers debit Holder,
// the account the drop pays from.
type MemoryLedger struct {
	mu       sync.Mutex
	holder   common.Address
	balances map[common.Address]map[common.Address]*big.Int
	logger   *slog.Logger
}

func NewMemoryLedger(holder common.Address, logger *slog.Logger) *MemoryLedger {
	return &MemoryLedger{
		holder:   holder,
		balances: make(map[common.Address]map[common.Address]*big.Int),
		logger:   application.ResolveLogger(logger),
	}
}

func (l *MemoryLedger) Holder() common.Address {
	return l.holder
}

// Mint credits amount of token to account, registering the token if needed.
func (l *MemoryLedger) Mint(token common.Address, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	current, ok := accounts[account]
	if !ok {
		current = new(big.Int)
	}
	accounts[account] = new(big.Int).Add(current, amount)
	return nil
}

func (l *MemoryLedger) Transfer(_ context.Context, token common.Address, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, ok := l.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	available, ok := accounts[l.holder]
	if !ok || available.Cmp(amount) < 0 {
		return fmt.Errorf("%w: holder %s", ErrInsufficientBalance, l.holder.Hex())
	}
	accounts[l.holder] = new(big.Int).Sub(available, amount)
	received, ok := accounts[to]
	if !ok {
		received = new(big.Int)
	}
	accounts[to] = new(big.Int).Add(received, amount)

	l.logger.Debug("memory ledger transfer applied",
		"event", "claim_engine_ledger_transfer",
		"module", "token-distribution/claim-engine",
		"layer", "adapter",
		"token", token.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
	)
	return nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, token common.Address, holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, ok := l.balances[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	balance, ok := accounts[holder]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

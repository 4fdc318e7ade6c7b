package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a half-open trial request through.
	OpenTimeout time.Duration
}

// BreakerLedger fails payouts fast while the wrapped ledger is unhealthy.
// An open breaker surfaces as gobreaker.ErrOpenState, which the claim
// use case turns into a rolled-back ErrTransferFailed.
type BreakerLedger struct {
	next    ports.AssetLedger
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerLedger(next ports.AssetLedger, settings BreakerSettings, logger *slog.Logger) *BreakerLedger {
	log := application.ResolveLogger(logger)
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := settings.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	name := settings.Name
	if name == "" {
		name = "asset-ledger"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		// A pending transfer was accepted by the node, so it does not count
		// against the RPC endpoint.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ports.ErrTransferPending)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("ledger breaker state changed",
				"event", "claim_engine_ledger_breaker_state",
				"module", "token-distribution/claim-engine",
				"layer", "adapter",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &BreakerLedger{next: next, breaker: breaker}
}

func (b *BreakerLedger) Transfer(ctx context.Context, token common.Address, to common.Address, amount *big.Int) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Transfer(ctx, token, to, amount)
	})
	return err
}

// BalanceOf passes through when the wrapped ledger reports balances.
func (b *BreakerLedger) BalanceOf(ctx context.Context, token common.Address, holder common.Address) (*big.Int, error) {
	reader, ok := b.next.(ports.BalanceReader)
	if !ok {
		return nil, domainerrors.ErrBalanceUnavailable
	}
	return reader.BalanceOf(ctx, token, holder)
}

func (b *BreakerLedger) State() gobreaker.State {
	return b.breaker.State()
}

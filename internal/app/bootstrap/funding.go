package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	"merkledrop/contexts/token-distribution/claim-engine/application/commands"
	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/ethereum/go-ethereum/common"
)

const claimTokenSetTopic = commands.EventTokenSet

// ledgerFunding mints a fixed supply to the memory ledger's holder the first
// time each token is bound, so a local drop can pay claims.
type ledgerFunding struct {
	ledger *ledger.MemoryLedger
	supply *big.Int
	logger *slog.Logger

	mu     sync.Mutex
	funded map[common.Address]bool
}

func newLedgerFunding(memLedger *ledger.MemoryLedger, rawSupply string, logger *slog.Logger) (*ledgerFunding, error) {
	supply, ok := new(big.Int).SetString(rawSupply, 10)
	if !ok || supply.Sign() <= 0 {
		return nil, fmt.Errorf("MEMORY_LEDGER_SUPPLY %q must be a positive base-10 integer", rawSupply)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerFunding{
		ledger: memLedger,
		supply: supply,
		logger: logger,
		funded: make(map[common.Address]bool),
	}, nil
}

// Handle consumes drop.token_set events.
func (f *ledgerFunding) Handle(_ context.Context, event contractsv1.Envelope) error {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	if !common.IsHexAddress(payload.Token) {
		return fmt.Errorf("%s payload token %q is not an address", event.EventType, payload.Token)
	}
	token := common.HexToAddress(payload.Token)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.funded[token] {
		return nil
	}
	if err := f.ledger.Mint(token, f.ledger.Holder(), f.supply); err != nil {
		return err
	}
	f.funded[token] = true
	f.logger.Info("memory ledger funded",
		"event", "bootstrap_memory_ledger_funded",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"token", token.Hex(),
		"holder", f.ledger.Holder().Hex(),
		"supply", f.supply.String(),
	)
	return nil
}

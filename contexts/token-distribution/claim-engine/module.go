package claimengine

import (
	"context"
	"log/slog"
	"math/big"

	httpadapter "merkledrop/contexts/token-distribution/claim-engine/adapters/http"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/memory"
	"merkledrop/contexts/token-distribution/claim-engine/application/commands"
	"merkledrop/contexts/token-distribution/claim-engine/application/queries"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

// Module is the composition surface of the claim engine.
// Runtime wiring should consume Handler; Store and Ledger are exposed for
// tests and the in-memory runtime.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Ledger  *ledger.MemoryLedger
}

type Dependencies struct {
	Store       ports.StateStore
	Ledger      ports.AssetLedger
	Balances    ports.BalanceReader
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// NewModule wires the claim engine use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	handler := httpadapter.Handler{
		InitializeDrop: commands.InitializeDropUseCase{
			Store:  deps.Store,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		SetRoot: commands.SetRootUseCase{
			Store:       deps.Store,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		SetToken: commands.SetTokenUseCase{
			Store:       deps.Store,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		SetAmountForUser: commands.SetAmountForUserUseCase{
			Store:       deps.Store,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		Claim: commands.ClaimUseCase{
			Store:       deps.Store,
			Ledger:      deps.Ledger,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		GetDrop: queries.GetDropUseCase{
			Store:  deps.Store,
			Logger: deps.Logger,
		},
		GetRecipient: queries.GetRecipientUseCase{
			Store:  deps.Store,
			Logger: deps.Logger,
		},
		GetBalance: queries.GetBalanceUseCase{
			Store:    deps.Store,
			Balances: deps.Balances,
			Logger:   deps.Logger,
		},
		Logger: deps.Logger,
	}
	return Module{Handler: handler}
}

// NewInMemoryModule wires the claim engine against the in-memory store and
// ledger. The ledger pays from the drop owner's account, so callers mint the
// drop's funding to owner before claims can succeed.
func NewInMemoryModule(ctx context.Context, dropID string, owner common.Address, logger *slog.Logger) (Module, error) {
	store := memory.NewStore(logger)
	memLedger := ledger.NewMemoryLedger(owner, logger)
	module := NewModule(Dependencies{
		Store:       store,
		Ledger:      memLedger,
		Balances:    memLedger,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	module.Ledger = memLedger
	if _, err := module.Initialize(ctx, dropID, owner); err != nil {
		return Module{}, err
	}
	return module, nil
}

// Initialize creates the drop on first start or re-asserts its owner.
func (m Module) Initialize(ctx context.Context, dropID string, owner common.Address) (entities.Drop, error) {
	result, err := m.Handler.InitializeDrop.Execute(ctx, commands.InitializeDropCommand{
		DropID: dropID,
		Owner:  owner,
	})
	if err != nil {
		return entities.Drop{}, err
	}
	return result.Drop, nil
}

func (m Module) SetAmountForUser(ctx context.Context, caller, recipient common.Address, amount *big.Int) error {
	_, err := m.Handler.SetAmountForUser.Execute(ctx, commands.SetAmountForUserCommand{
		Caller:    caller,
		Recipient: recipient,
		Amount:    amount,
	})
	return err
}

func (m Module) SetRoot(ctx context.Context, caller common.Address, root common.Hash) error {
	_, err := m.Handler.SetRoot.Execute(ctx, commands.SetRootCommand{Caller: caller, Root: root})
	return err
}

func (m Module) SetToken(ctx context.Context, caller, token common.Address) error {
	_, err := m.Handler.SetToken.Execute(ctx, commands.SetTokenCommand{Caller: caller, Token: token})
	return err
}

func (m Module) Claim(ctx context.Context, caller common.Address, proof []common.Hash) (entities.Claim, error) {
	result, err := m.Handler.Claim.Execute(ctx, commands.ClaimCommand{Caller: caller, Proof: proof})
	if err != nil {
		return entities.Claim{}, err
	}
	return result.Claim, nil
}

func (m Module) Owner(ctx context.Context) (common.Address, error) {
	drop, err := m.Handler.GetDrop.Execute(ctx)
	return drop.Owner, err
}

func (m Module) Root(ctx context.Context) (common.Hash, error) {
	drop, err := m.Handler.GetDrop.Execute(ctx)
	return drop.Root, err
}

func (m Module) Token(ctx context.Context) (common.Address, error) {
	drop, err := m.Handler.GetDrop.Execute(ctx)
	return drop.Token, err
}

// Entitlement returns zero for recipients that were never registered.
func (m Module) Entitlement(ctx context.Context, recipient common.Address) (*big.Int, error) {
	view, err := m.Handler.GetRecipient.Execute(ctx, recipient)
	if err != nil {
		return nil, err
	}
	return view.Entitlement, nil
}

func (m Module) IsClaimed(ctx context.Context, recipient common.Address) (bool, error) {
	view, err := m.Handler.GetRecipient.Execute(ctx, recipient)
	return view.Claimed, err
}

func (m Module) RecipientStatus(ctx context.Context, recipient common.Address) (entities.RecipientStatus, error) {
	view, err := m.Handler.GetRecipient.Execute(ctx, recipient)
	return view.Status, err
}

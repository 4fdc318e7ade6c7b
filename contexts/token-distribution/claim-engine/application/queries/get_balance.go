package queries

import (
	"context"
	"log/slog"
	"math/big"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type BalanceView struct {
	Token   common.Address
	Holder  common.Address
	Balance *big.Int
}

// GetBalanceUseCase reads a holder's balance of the bound asset from the ledger.
type GetBalanceUseCase struct {
	Store    ports.StateStore
	Balances ports.BalanceReader
	Logger   *slog.Logger
}

func (u GetBalanceUseCase) Execute(ctx context.Context, holder common.Address) (BalanceView, error) {
	logger := application.ResolveLogger(u.Logger)
	if u.Balances == nil {
		return BalanceView{}, domainerrors.ErrBalanceUnavailable
	}

	drop, err := GetDropUseCase{Store: u.Store, Logger: u.Logger}.Execute(ctx)
	if err != nil {
		return BalanceView{}, err
	}
	if !drop.HasToken() {
		return BalanceView{}, domainerrors.ErrTokenNotSet
	}

	balance, err := u.Balances.BalanceOf(ctx, drop.Token, holder)
	if err != nil {
		logger.Error("ledger balance read failed",
			"event", "claim_engine_balance_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"token", drop.Token.Hex(),
			"holder", holder.Hex(),
			"error", err.Error(),
		)
		return BalanceView{}, err
	}
	return BalanceView{Token: drop.Token, Holder: holder, Balance: balance}, nil
}

package commands

import (
	"context"
	"log/slog"
	"math/big"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/domain/services"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type SetAmountForUserCommand struct {
	Caller    common.Address
	Recipient common.Address
	Amount    *big.Int
}

type SetAmountForUserResult struct {
	Entitlement entities.Entitlement
	// AlreadyClaimed reports that the recipient stays claimed despite the new amount.
	AlreadyClaimed bool
}

// SetAmountForUserUseCase overwrites a recipient's entitlement. A zero amount
// makes the recipient a non-participant. It never reopens a recorded claim.
type SetAmountForUserUseCase struct {
	Store       ports.StateStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u SetAmountForUserUseCase) Execute(ctx context.Context, cmd SetAmountForUserCommand) (SetAmountForUserResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := resolveNow(u.Clock)

	var result SetAmountForUserResult
	err := u.Store.Update(ctx, func(ctx context.Context, state ports.StateWriter) error {
		drop, err := state.GetDrop(ctx)
		if err != nil {
			return err
		}
		if err := services.AuthorizeOwner(drop, cmd.Caller); err != nil {
			return err
		}
		entitlement, err := entities.NewEntitlement(cmd.Recipient, cmd.Amount, now)
		if err != nil {
			return err
		}
		if err := state.PutEntitlement(ctx, entitlement); err != nil {
			return err
		}
		_, claimed, err := state.GetClaim(ctx, cmd.Recipient)
		if err != nil {
			return err
		}
		result = SetAmountForUserResult{Entitlement: entitlement, AlreadyClaimed: claimed}
		return appendEvent(ctx, state, u.IDGenerator, EventEntitlementSet, "recipient", entitlement.Recipient.Hex(), now, map[string]any{
			"drop_id":   drop.DropID,
			"recipient": entitlement.Recipient.Hex(),
			"amount":    entitlement.Amount.String(),
			"claimed":   claimed,
		})
	})
	if err != nil {
		logger.Warn("set amount rejected",
			"event", "claim_engine_set_amount_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"caller", cmd.Caller.Hex(),
			"recipient", cmd.Recipient.Hex(),
			"error", err.Error(),
		)
		return SetAmountForUserResult{}, err
	}

	logger.Info("entitlement set",
		"event", "claim_engine_entitlement_set",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"recipient", result.Entitlement.Recipient.Hex(),
		"amount", result.Entitlement.Amount.String(),
		"already_claimed", result.AlreadyClaimed,
	)
	return result, nil
}

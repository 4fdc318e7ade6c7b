package commands

import (
	"context"
	"log/slog"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/domain/services"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type SetTokenCommand struct {
	Caller common.Address
	Token  common.Address
}

type SetTokenResult struct {
	Drop          entities.Drop
	PreviousToken common.Address
}

type SetTokenUseCase struct {
	Store       ports.StateStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u SetTokenUseCase) Execute(ctx context.Context, cmd SetTokenCommand) (SetTokenResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := resolveNow(u.Clock)

	var result SetTokenResult
	err := u.Store.Update(ctx, func(ctx context.Context, state ports.StateWriter) error {
		drop, err := state.GetDrop(ctx)
		if err != nil {
			return err
		}
		if err := services.AuthorizeOwner(drop, cmd.Caller); err != nil {
			return err
		}
		if cmd.Token == (common.Address{}) {
			return domainerrors.ErrInvalidInput
		}
		result.PreviousToken = drop.Token
		drop.Token = cmd.Token
		drop.UpdatedAt = now
		if err := state.SaveDrop(ctx, drop); err != nil {
			return err
		}
		result.Drop = drop
		return appendEvent(ctx, state, u.IDGenerator, EventTokenSet, "drop_id", drop.DropID, now, map[string]any{
			"drop_id":        drop.DropID,
			"token":          drop.Token.Hex(),
			"previous_token": result.PreviousToken.Hex(),
			"set_by":         cmd.Caller.Hex(),
		})
	})
	if err != nil {
		logger.Warn("set token rejected",
			"event", "claim_engine_set_token_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"caller", cmd.Caller.Hex(),
			"error", err.Error(),
		)
		return SetTokenResult{}, err
	}

	logger.Info("asset token bound",
		"event", "claim_engine_token_set",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"token", result.Drop.Token.Hex(),
	)
	return result, nil
}

package commands

import (
	"context"
	"log/slog"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/domain/services"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type SetRootCommand struct {
	Caller common.Address
	Root   common.Hash
}

type SetRootResult struct {
	Drop         entities.Drop
	PreviousRoot common.Hash
}

// SetRootUseCase replaces the committed root unconditionally. Claims already
// recorded stay claimed and entitlements are untouched.
type SetRootUseCase struct {
	Store       ports.StateStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u SetRootUseCase) Execute(ctx context.Context, cmd SetRootCommand) (SetRootResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := resolveNow(u.Clock)

	var result SetRootResult
	err := u.Store.Update(ctx, func(ctx context.Context, state ports.StateWriter) error {
		drop, err := state.GetDrop(ctx)
		if err != nil {
			return err
		}
		if err := services.AuthorizeOwner(drop, cmd.Caller); err != nil {
			return err
		}
		result.PreviousRoot = drop.Root
		drop.Root = cmd.Root
		drop.UpdatedAt = now
		if err := state.SaveDrop(ctx, drop); err != nil {
			return err
		}
		result.Drop = drop
		return appendEvent(ctx, state, u.IDGenerator, EventRootSet, "drop_id", drop.DropID, now, map[string]any{
			"drop_id":       drop.DropID,
			"root":          drop.Root.Hex(),
			"previous_root": result.PreviousRoot.Hex(),
			"set_by":        cmd.Caller.Hex(),
		})
	})
	if err != nil {
		logger.Warn("set root rejected",
			"event", "claim_engine_set_root_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"caller", cmd.Caller.Hex(),
			"error", err.Error(),
		)
		return SetRootResult{}, err
	}

	logger.Info("root replaced",
		"event", "claim_engine_root_set",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"root", result.Drop.Root.Hex(),
		"previous_root", result.PreviousRoot.Hex(),
	)
	return result, nil
}

package commands

import (
	"context"
	"errors"
	"log/slog"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type InitializeDropCommand struct {
	DropID string
	Owner  common.Address
}

type InitializeDropResult struct {
	Drop    entities.Drop
	Created bool
}

// InitializeDropUseCase creates the drop row on first start and re-asserts the
// configured owner on later starts. Root, token, entitlements and claims survive restarts.
type InitializeDropUseCase struct {
	Store  ports.StateStore
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u InitializeDropUseCase) Execute(ctx context.Context, cmd InitializeDropCommand) (InitializeDropResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := resolveNow(u.Clock)

	var result InitializeDropResult
	err := u.Store.Update(ctx, func(ctx context.Context, state ports.StateWriter) error {
		drop, err := state.GetDrop(ctx)
		switch {
		case errors.Is(err, domainerrors.ErrDropNotInitialized):
			drop, err = entities.NewDrop(cmd.DropID, cmd.Owner, now)
			if err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return err
		case drop.Owner == cmd.Owner:
			result.Drop = drop
			return nil
		default:
			if cmd.Owner == (common.Address{}) {
				return domainerrors.ErrInvalidInput
			}
			logger.Warn("drop owner replaced from configuration",
				"event", "claim_engine_owner_replaced",
				"module", "token-distribution/claim-engine",
				"layer", "application",
				"previous_owner", drop.Owner.Hex(),
				"owner", cmd.Owner.Hex(),
			)
			drop.Owner = cmd.Owner
			drop.UpdatedAt = now
		}
		if err := state.SaveDrop(ctx, drop); err != nil {
			return err
		}
		result.Drop = drop
		return nil
	})
	if err != nil {
		logger.Error("drop initialization failed",
			"event", "claim_engine_initialize_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"drop_id", cmd.DropID,
			"error", err.Error(),
		)
		return InitializeDropResult{}, err
	}

	logger.Info("drop initialized",
		"event", "claim_engine_initialized",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"drop_id", result.Drop.DropID,
		"owner", result.Drop.Owner.Hex(),
		"created", result.Created,
	)
	return result, nil
}

package queries

import (
	"context"
	"log/slog"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/ports"
)

type GetDropUseCase struct {
	Store  ports.StateStore
	Logger *slog.Logger
}

func (u GetDropUseCase) Execute(ctx context.Context) (entities.Drop, error) {
	logger := application.ResolveLogger(u.Logger)

	var drop entities.Drop
	err := u.Store.View(ctx, func(ctx context.Context, state ports.StateReader) error {
		var err error
		drop, err = state.GetDrop(ctx)
		return err
	})
	if err != nil {
		logger.Error("get drop failed",
			"event", "claim_engine_get_drop_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Drop{}, err
	}
	return drop, nil
}

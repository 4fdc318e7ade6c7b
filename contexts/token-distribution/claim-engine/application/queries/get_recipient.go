package queries

import (
	"context"
	"log/slog"
	"math/big"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type RecipientView struct {
	Recipient common.Address
	// Entitlement is zero for unregistered recipients.
	Entitlement *big.Int
	Claimed     bool
	Claim       *entities.Claim
	Status      entities.RecipientStatus
}

type GetRecipientUseCase struct {
	Store  ports.StateStore
	Logger *slog.Logger
}

func (u GetRecipientUseCase) Execute(ctx context.Context, recipient common.Address) (RecipientView, error) {
	logger := application.ResolveLogger(u.Logger)

	view := RecipientView{Recipient: recipient, Entitlement: new(big.Int)}
	err := u.Store.View(ctx, func(ctx context.Context, state ports.StateReader) error {
		entitlement, found, err := state.GetEntitlement(ctx, recipient)
		if err != nil {
			return err
		}
		claim, claimed, err := state.GetClaim(ctx, recipient)
		if err != nil {
			return err
		}
		if found && entitlement.Amount != nil {
			view.Entitlement = new(big.Int).Set(entitlement.Amount)
		}
		if claimed {
			view.Claimed = true
			view.Claim = &claim
		}
		view.Status = entities.ResolveRecipientStatus(entitlement, found, claimed)
		return nil
	})
	if err != nil {
		logger.Error("get recipient failed",
			"event", "claim_engine_get_recipient_failed",
			"module", "token-distribution/claim-engine",
			"layer", "application",
			"recipient", recipient.Hex(),
			"error", err.Error(),
		)
		return RecipientView{}, err
	}
	return view, nil
}

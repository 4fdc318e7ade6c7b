package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/domain/services"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

type ClaimCommand struct {
	Caller common.Address
	Proof  []common.Hash
}

type ClaimResult struct {
	Claim entities.Claim
	// PayoutPending reports a transfer that was broadcast but not confirmed.
	// The claim stays recorded.
	PayoutPending bool
}

type ClaimUseCase struct {
	Store       ports.StateStore
	Ledger      ports.AssetLedger
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute runs the claim workflow in this order:
// 1) participation, single-use and proof checks against the current state
// 2) stage the claim row and drop.claimed outbox message
// 3) pay out through the ledger with the transaction-carrying context.
// A payout failure discards the staged writes, so the recipient stays entitled.
// A transfer that reached the network is never rolled back: the state
// transaction is detached from caller cancellation so it can still commit
// after the request deadline, and a pending outcome commits the claim.
func (u ClaimUseCase) Execute(ctx context.Context, cmd ClaimCommand) (ClaimResult, error) {
	logger := application.ResolveLogger(u.Logger)
	now := resolveNow(u.Clock)
	requestCtx := ctx

	logger.Info("claim started",
		"event", "claim_engine_claim_started",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"recipient", cmd.Caller.Hex(),
		"proof_length", len(cmd.Proof),
	)

	var result ClaimResult
	err := u.Store.Update(context.WithoutCancel(ctx), func(ctx context.Context, state ports.StateWriter) error {
		drop, err := state.GetDrop(ctx)
		if err != nil {
			return err
		}
		entitlement, entitled, err := state.GetEntitlement(ctx, cmd.Caller)
		if err != nil {
			return err
		}
		_, claimed, err := state.GetClaim(ctx, cmd.Caller)
		if err != nil {
			return err
		}
		if err := services.EvaluateClaim(drop, entitlement, entitled, claimed, cmd.Proof); err != nil {
			return err
		}

		claimID, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		claim, err := entities.NewClaim(claimID, cmd.Caller, entitlement.Amount, drop.Root, drop.Token, now)
		if err != nil {
			return err
		}
		// Staged before the payout so a reentrant claim on this context sees it.
		if err := state.InsertClaim(ctx, claim); err != nil {
			return err
		}
		if err := appendEvent(ctx, state, u.IDGenerator, EventClaimed, "recipient", claim.Recipient.Hex(), now, map[string]any{
			"claim_id":   claim.ClaimID,
			"drop_id":    drop.DropID,
			"recipient":  claim.Recipient.Hex(),
			"amount":     claim.Amount.String(),
			"root":       claim.Root.Hex(),
			"token":      claim.Token.Hex(),
			"claimed_at": claim.ClaimedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}

		if !drop.HasToken() {
			return fmt.Errorf("%w: %w", domainerrors.ErrTransferFailed, domainerrors.ErrTokenNotSet)
		}
		if u.Ledger == nil {
			return fmt.Errorf("%w: no asset ledger configured", domainerrors.ErrTransferFailed)
		}
		// Nothing has left the process yet, so a caller that gave up can still roll back.
		if err := requestCtx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domainerrors.ErrTransferFailed, err)
		}
		if err := u.Ledger.Transfer(ctx, drop.Token, claim.Recipient, claim.Amount); err != nil {
			if !errors.Is(err, ports.ErrTransferPending) {
				return fmt.Errorf("%w: %w", domainerrors.ErrTransferFailed, err)
			}
			logger.Warn("claim payout pending",
				"event", "claim_engine_claim_transfer_pending",
				"module", "token-distribution/claim-engine",
				"layer", "application",
				"claim_id", claim.ClaimID,
				"recipient", claim.Recipient.Hex(),
				"error", err.Error(),
			)
			result.PayoutPending = true
		}
		result.Claim = claim
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrTransferFailed) {
			logger.Error("claim payout failed",
				"event", "claim_engine_claim_transfer_failed",
				"module", "token-distribution/claim-engine",
				"layer", "application",
				"recipient", cmd.Caller.Hex(),
				"error", err.Error(),
			)
		} else {
			logger.Warn("claim rejected",
				"event", "claim_engine_claim_rejected",
				"module", "token-distribution/claim-engine",
				"layer", "application",
				"recipient", cmd.Caller.Hex(),
				"error", err.Error(),
			)
		}
		return ClaimResult{}, err
	}

	logger.Info("claim paid",
		"event", "claim_engine_claim_paid",
		"module", "token-distribution/claim-engine",
		"layer", "application",
		"claim_id", result.Claim.ClaimID,
		"recipient", result.Claim.Recipient.Hex(),
		"amount", result.Claim.Amount.String(),
		"root", result.Claim.Root.Hex(),
		"payout_pending", result.PayoutPending,
	)
	return result, nil
}

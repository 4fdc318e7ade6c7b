package httpadapter

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/application/commands"
	"merkledrop/contexts/token-distribution/claim-engine/application/queries"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	"merkledrop/contexts/token-distribution/claim-engine/domain/services"
	httptransport "merkledrop/contexts/token-distribution/claim-engine/transport/http"

	"github.com/ethereum/go-ethereum/common"
)

// Handler maps transport DTOs onto claim engine use cases. Caller identity is
// resolved and authenticated by the server before any handler runs.
type Handler struct {
	InitializeDrop   commands.InitializeDropUseCase
	SetRoot          commands.SetRootUseCase
	SetToken         commands.SetTokenUseCase
	SetAmountForUser commands.SetAmountForUserUseCase
	Claim            commands.ClaimUseCase
	GetDrop          queries.GetDropUseCase
	GetRecipient     queries.GetRecipientUseCase
	GetBalance       queries.GetBalanceUseCase
	Logger           *slog.Logger
}

// GetDropHandler godoc
// @Summary Get drop configuration
// @Description Returns the owner, committed root and bound asset token.
// @Tags claim-engine
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Success 200 {object} httptransport.DropResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /drop [get]
func (h Handler) GetDropHandler(ctx context.Context) (httptransport.DropResponse, error) {
	drop, err := h.GetDrop.Execute(ctx)
	if err != nil {
		return httptransport.DropResponse{}, err
	}
	return mapDrop(drop), nil
}

// GetRecipientHandler godoc
// @Summary Get recipient status
// @Description Returns the entitlement, claimed flag and state of one recipient.
// @Tags claim-engine
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param address path string true "Recipient address"
// @Success 200 {object} httptransport.RecipientResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /drop/recipients/{address} [get]
func (h Handler) GetRecipientHandler(ctx context.Context, address string) (httptransport.RecipientResponse, error) {
	if err := httptransport.ValidateAddress(address); err != nil {
		return httptransport.RecipientResponse{}, err
	}
	view, err := h.GetRecipient.Execute(ctx, common.HexToAddress(address))
	if err != nil {
		return httptransport.RecipientResponse{}, err
	}
	response := httptransport.RecipientResponse{
		Recipient:   view.Recipient.Hex(),
		Entitlement: view.Entitlement.String(),
		Claimed:     view.Claimed,
		Status:      string(view.Status),
	}
	if view.Claim != nil {
		claim := mapClaim(*view.Claim)
		response.Claim = &claim
	}
	return response, nil
}

// GetBalanceHandler godoc
// @Summary Get asset balance
// @Description Returns the holder's balance of the bound asset token.
// @Tags claim-engine
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param address path string true "Holder address"
// @Success 200 {object} httptransport.BalanceResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 501 {object} httptransport.ErrorResponse
// @Router /drop/recipients/{address}/balance [get]
func (h Handler) GetBalanceHandler(ctx context.Context, address string) (httptransport.BalanceResponse, error) {
	if err := httptransport.ValidateAddress(address); err != nil {
		return httptransport.BalanceResponse{}, err
	}
	view, err := h.GetBalance.Execute(ctx, common.HexToAddress(address))
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		Token:   view.Token.Hex(),
		Holder:  view.Holder.Hex(),
		Balance: view.Balance.String(),
	}, nil
}

// AuthorizeOwner rejects a non-owner before any request payload is looked at,
// so authority calls fail with ErrUnauthorized whatever their arguments.
func (h Handler) AuthorizeOwner(ctx context.Context, caller common.Address) error {
	drop, err := h.GetDrop.Execute(ctx)
	if err != nil {
		return err
	}
	return services.AuthorizeOwner(drop, caller)
}

// SetRootHandler godoc
// @Summary Replace the committed root
// @Description Owner only. Replaces the Merkle root; recorded claims stay claimed.
// @Tags claim-engine-admin
// @Accept json
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param X-Caller-Address header string true "Caller address"
// @Param X-Caller-Signature header string false "EIP-191 signature over the request digest"
// @Param request body httptransport.SetRootRequest true "New root"
// @Success 200 {object} httptransport.SetRootResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /drop/admin/root [post]
func (h Handler) SetRootHandler(ctx context.Context, caller common.Address, req httptransport.SetRootRequest) (httptransport.SetRootResponse, error) {
	if err := h.AuthorizeOwner(ctx, caller); err != nil {
		return httptransport.SetRootResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return httptransport.SetRootResponse{}, err
	}
	result, err := h.SetRoot.Execute(ctx, commands.SetRootCommand{
		Caller: caller,
		Root:   common.HexToHash(req.Root),
	})
	if err != nil {
		return httptransport.SetRootResponse{}, err
	}
	return httptransport.SetRootResponse{
		Root:         result.Drop.Root.Hex(),
		PreviousRoot: result.PreviousRoot.Hex(),
	}, nil
}

// SetTokenHandler godoc
// @Summary Bind the asset token
// @Description Owner only. Binds or rebinds the token claims are paid in.
// @Tags claim-engine-admin
// @Accept json
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param X-Caller-Address header string true "Caller address"
// @Param X-Caller-Signature header string false "EIP-191 signature over the request digest"
// @Param request body httptransport.SetTokenRequest true "Token address"
// @Success 200 {object} httptransport.SetTokenResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /drop/admin/token [post]
func (h Handler) SetTokenHandler(ctx context.Context, caller common.Address, req httptransport.SetTokenRequest) (httptransport.SetTokenResponse, error) {
	if err := h.AuthorizeOwner(ctx, caller); err != nil {
		return httptransport.SetTokenResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return httptransport.SetTokenResponse{}, err
	}
	result, err := h.SetToken.Execute(ctx, commands.SetTokenCommand{
		Caller: caller,
		Token:  common.HexToAddress(req.Token),
	})
	if err != nil {
		return httptransport.SetTokenResponse{}, err
	}
	return httptransport.SetTokenResponse{
		Token:         result.Drop.Token.Hex(),
		PreviousToken: result.PreviousToken.Hex(),
	}, nil
}

// SetEntitlementHandler godoc
// @Summary Set a recipient entitlement
// @Description Owner only. Overwrites the amount; zero removes the recipient. Never reopens a claim.
// @Tags claim-engine-admin
// @Accept json
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param X-Caller-Address header string true "Caller address"
// @Param X-Caller-Signature header string false "EIP-191 signature over the request digest"
// @Param request body httptransport.SetEntitlementRequest true "Recipient and base-10 amount"
// @Success 200 {object} httptransport.EntitlementResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /drop/admin/entitlements [post]
func (h Handler) SetEntitlementHandler(ctx context.Context, caller common.Address, req httptransport.SetEntitlementRequest) (httptransport.EntitlementResponse, error) {
	if err := h.AuthorizeOwner(ctx, caller); err != nil {
		return httptransport.EntitlementResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return httptransport.EntitlementResponse{}, err
	}
	amount, _ := new(big.Int).SetString(req.Amount, 10)
	result, err := h.SetAmountForUser.Execute(ctx, commands.SetAmountForUserCommand{
		Caller:    caller,
		Recipient: common.HexToAddress(req.Recipient),
		Amount:    amount,
	})
	if err != nil {
		return httptransport.EntitlementResponse{}, err
	}
	return httptransport.EntitlementResponse{
		Recipient:      result.Entitlement.Recipient.Hex(),
		Amount:         result.Entitlement.Amount.String(),
		AlreadyClaimed: result.AlreadyClaimed,
	}, nil
}

// ClaimHandler godoc
// @Summary Claim an entitlement
// @Description Verifies the caller's proof against the root and pays the entitlement once.
// @Tags claim-engine
// @Accept json
// @Produce json
// @Param X-Request-Id header string true "Request correlation id"
// @Param X-Caller-Address header string true "Caller address"
// @Param X-Caller-Signature header string false "EIP-191 signature over the request digest"
// @Param request body httptransport.ClaimRequest true "Merkle proof, leaf level first"
// @Success 200 {object} httptransport.ClaimResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /drop/claim [post]
func (h Handler) ClaimHandler(ctx context.Context, caller common.Address, req httptransport.ClaimRequest) (httptransport.ClaimResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	if err := req.Validate(); err != nil {
		return httptransport.ClaimResponse{}, err
	}
	proof := make([]common.Hash, 0, len(req.Proof))
	for _, sibling := range req.Proof {
		proof = append(proof, common.HexToHash(sibling))
	}

	logger.Info("claim request received",
		"event", "http_claim_received",
		"module", "token-distribution/claim-engine",
		"layer", "transport",
		"recipient", caller.Hex(),
	)
	result, err := h.Claim.Execute(ctx, commands.ClaimCommand{Caller: caller, Proof: proof})
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return httptransport.ClaimResponse{Claim: mapClaim(result.Claim), PayoutPending: result.PayoutPending}, nil
}

func mapDrop(drop entities.Drop) httptransport.DropResponse {
	return httptransport.DropResponse{
		DropID:    drop.DropID,
		Owner:     drop.Owner.Hex(),
		Root:      drop.Root.Hex(),
		Token:     drop.Token.Hex(),
		UpdatedAt: drop.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapClaim(claim entities.Claim) httptransport.ClaimDTO {
	return httptransport.ClaimDTO{
		ClaimID:   claim.ClaimID,
		Recipient: claim.Recipient.Hex(),
		Amount:    claim.Amount.String(),
		Root:      claim.Root.Hex(),
		Token:     claim.Token.Hex(),
		ClaimedAt: claim.ClaimedAt.UTC().Format(time.RFC3339),
	}
}

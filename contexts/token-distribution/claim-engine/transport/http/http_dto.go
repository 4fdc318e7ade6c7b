package httptransport

import (
	"fmt"
	"math/big"

	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("uint256", func(fl validator.FieldLevel) bool {
		amount, ok := new(big.Int).SetString(fl.Field().String(), 10)
		return ok && merkle.CheckAmount(amount) == nil
	})
	return v
}

func validateStruct(value any) error {
	if err := validate.Struct(value); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidInput, err)
	}
	return nil
}

// ValidateAddress checks a path or header address.
func ValidateAddress(address string) error {
	if err := validate.Var(address, "required,eth_addr"); err != nil {
		return fmt.Errorf("%w: address %q", domainerrors.ErrInvalidInput, address)
	}
	return nil
}

type SetRootRequest struct {
	Root string `json:"root" validate:"required,len=66,startswith=0x,hexadecimal"`
}

func (r SetRootRequest) Validate() error { return validateStruct(r) }

type SetTokenRequest struct {
	Token string `json:"token" validate:"required,eth_addr"`
}

func (r SetTokenRequest) Validate() error { return validateStruct(r) }

type SetEntitlementRequest struct {
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Amount    string `json:"amount" validate:"required,numeric,uint256"`
}

func (r SetEntitlementRequest) Validate() error { return validateStruct(r) }

// ClaimRequest caps the proof at 64 siblings, the depth of a 2^64-leaf tree.
type ClaimRequest struct {
	Proof []string `json:"proof" validate:"max=64,dive,len=66,startswith=0x,hexadecimal"`
}

func (r ClaimRequest) Validate() error { return validateStruct(r) }

type DropResponse struct {
	DropID    string `json:"drop_id"`
	Owner     string `json:"owner"`
	Root      string `json:"root"`
	Token     string `json:"token"`
	UpdatedAt string `json:"updated_at"`
}

type SetRootResponse struct {
	Root         string `json:"root"`
	PreviousRoot string `json:"previous_root"`
}

type SetTokenResponse struct {
	Token         string `json:"token"`
	PreviousToken string `json:"previous_token"`
}

type EntitlementResponse struct {
	Recipient      string `json:"recipient"`
	Amount         string `json:"amount"`
	AlreadyClaimed bool   `json:"already_claimed"`
}

type ClaimDTO struct {
	ClaimID   string `json:"claim_id"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Root      string `json:"root"`
	Token     string `json:"token"`
	ClaimedAt string `json:"claimed_at"`
}

type ClaimResponse struct {
	Claim ClaimDTO `json:"claim"`
	// PayoutPending is set when the transfer was broadcast but not yet confirmed.
	PayoutPending bool `json:"payout_pending,omitempty"`
}

type RecipientResponse struct {
	Recipient   string    `json:"recipient"`
	Entitlement string    `json:"entitlement"`
	Claimed     bool      `json:"claimed"`
	Status      string    `json:"status"`
	Claim       *ClaimDTO `json:"claim,omitempty"`
}

type BalanceResponse struct {
	Token   string `json:"token"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

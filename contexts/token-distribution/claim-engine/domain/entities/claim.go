package entities

import (
	"math/big"
	"strings"
	"time"

	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Claim records a successful withdrawal. Claims are append-only.
type Claim struct {
	ClaimID   string
	Recipient common.Address
	Amount    *big.Int
	Root      common.Hash
	Token     common.Address
	ClaimedAt time.Time
}

func NewClaim(
	claimID string,
	recipient common.Address,
	amount *big.Int,
	root common.Hash,
	token common.Address,
	claimedAt time.Time,
) (Claim, error) {
	if strings.TrimSpace(claimID) == "" ||
		recipient == (common.Address{}) ||
		amount == nil || amount.Sign() <= 0 {
		return Claim{}, domainerrors.ErrInvalidInput
	}
	return Claim{
		ClaimID:   claimID,
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
		Root:      root,
		Token:     token,
		ClaimedAt: claimedAt.UTC(),
	}, nil
}

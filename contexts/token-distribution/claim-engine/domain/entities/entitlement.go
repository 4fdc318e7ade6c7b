package entities

import (
	"math/big"
	"time"

	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

// Entitlement is the amount a recipient may claim. A zero amount means the
// recipient is not a participant.
type Entitlement struct {
	Recipient common.Address
	Amount    *big.Int
	UpdatedAt time.Time
}

func NewEntitlement(recipient common.Address, amount *big.Int, now time.Time) (Entitlement, error) {
	if recipient == (common.Address{}) || merkle.CheckAmount(amount) != nil {
		return Entitlement{}, domainerrors.ErrInvalidInput
	}
	return Entitlement{
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
		UpdatedAt: now.UTC(),
	}, nil
}

func (e Entitlement) IsParticipant() bool {
	return e.Amount != nil && e.Amount.Sign() > 0
}

// Leaf is the commitment the recipient must prove against the root.
func (e Entitlement) Leaf() common.Hash {
	return merkle.LeafHash(e.Recipient, e.Amount)
}

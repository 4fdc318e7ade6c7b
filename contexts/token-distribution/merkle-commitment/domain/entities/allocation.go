package entities

import (
	"fmt"
	"math/big"

	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

// Allocation is one (recipient, amount) pair of the drop. It is never mutated
// after construction; Amount is a private copy.
type Allocation struct {
	Recipient common.Address
	Amount    *big.Int
}

func NewAllocation(recipient common.Address, amount *big.Int) (Allocation, error) {
	allocation := Allocation{Recipient: recipient}
	if amount != nil {
		allocation.Amount = new(big.Int).Set(amount)
	}
	if err := allocation.Validate(); err != nil {
		return Allocation{}, err
	}
	return allocation, nil
}

// ParseAllocation accepts a hex address and a base-10 amount.
func ParseAllocation(address string, amount string) (Allocation, error) {
	if !common.IsHexAddress(address) {
		return Allocation{}, fmt.Errorf("%w: recipient %q is not an address", domainerrors.ErrInvalidAllocation, address)
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return Allocation{}, fmt.Errorf("%w: amount %q is not a base-10 integer", domainerrors.ErrInvalidAllocation, amount)
	}
	return NewAllocation(common.HexToAddress(address), value)
}

func (a Allocation) Validate() error {
	if a.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidAllocation, merkle.ErrZeroAddress)
	}
	if err := merkle.CheckAmount(a.Amount); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidAllocation, err)
	}
	return nil
}

func (a Allocation) Leaf() common.Hash {
	return merkle.LeafHash(a.Recipient, a.Amount)
}

package entities

import (
	"strings"
	"time"

	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Drop is the singleton configuration of one drop instance.
// A zero Root accepts no proofs; a zero Token makes every payout fail.
type Drop struct {
	DropID    string
	Owner     common.Address
	Root      common.Hash
	Token     common.Address
	UpdatedAt time.Time
}

func NewDrop(dropID string, owner common.Address, now time.Time) (Drop, error) {
	if strings.TrimSpace(dropID) == "" || owner == (common.Address{}) {
		return Drop{}, domainerrors.ErrInvalidInput
	}
	return Drop{
		DropID:    strings.TrimSpace(dropID),
		Owner:     owner,
		UpdatedAt: now.UTC(),
	}, nil
}

func (d Drop) IsOwner(caller common.Address) bool {
	return caller != (common.Address{}) && caller == d.Owner
}

func (d Drop) HasRoot() bool {
	return d.Root != (common.Hash{})
}

func (d Drop) HasToken() bool {
	return d.Token != (common.Address{})
}

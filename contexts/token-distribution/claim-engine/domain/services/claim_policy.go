package services

import (
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

// EvaluateClaim enforces participation, single use and root membership, in that order.
func EvaluateClaim(
	drop entities.Drop,
	entitlement entities.Entitlement,
	entitled bool,
	alreadyClaimed bool,
	proof []common.Hash,
) error {
	if !entitled || !entitlement.IsParticipant() {
		return domainerrors.ErrNotParticipant
	}
	if alreadyClaimed {
		return domainerrors.ErrClaimed
	}
	if !merkle.VerifyProof(proof, drop.Root, entitlement.Leaf()) {
		return domainerrors.ErrInvalidProof
	}
	return nil
}

// AuthorizeOwner rejects authority operations from anyone but the owner.
func AuthorizeOwner(drop entities.Drop, caller common.Address) error {
	if !drop.IsOwner(caller) {
		return domainerrors.ErrUnauthorized
	}
	return nil
}

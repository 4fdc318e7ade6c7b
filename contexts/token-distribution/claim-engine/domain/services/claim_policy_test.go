package services

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contracts/merkle"

	"github.com/ethereum/go-ethereum/common"
)

func TestEvaluateClaim(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	aliceEntitlement, err := entities.NewEntitlement(alice, big.NewInt(100), now)
	if err != nil {
		t.Fatalf("entitlement: %v", err)
	}
	bobLeaf := merkle.LeafHash(bob, big.NewInt(50))
	root := merkle.HashPair(aliceEntitlement.Leaf(), bobLeaf)
	drop := entities.Drop{DropID: "drop", Owner: bob, Root: root}
	zero := entities.Entitlement{Recipient: alice, Amount: big.NewInt(0)}

	cases := []struct {
		name        string
		entitlement entities.Entitlement
		entitled    bool
		claimed     bool
		proof       []common.Hash
		want        error
	}{
		{"valid", aliceEntitlement, true, false, []common.Hash{bobLeaf}, nil},
		{"absent", entities.Entitlement{}, false, false, []common.Hash{bobLeaf}, domainerrors.ErrNotParticipant},
		{"zero amount", zero, true, false, []common.Hash{bobLeaf}, domainerrors.ErrNotParticipant},
		{"zero amount after claim", zero, true, true, []common.Hash{bobLeaf}, domainerrors.ErrNotParticipant},
		{"claimed", aliceEntitlement, true, true, []common.Hash{bobLeaf}, domainerrors.ErrClaimed},
		{"empty proof", aliceEntitlement, true, false, nil, domainerrors.ErrInvalidProof},
		{"wrong sibling", aliceEntitlement, true, false, []common.Hash{root}, domainerrors.ErrInvalidProof},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := EvaluateClaim(drop, tc.entitlement, tc.entitled, tc.claimed, tc.proof)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluateClaimRejectsUnsetRoot(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	entitlement := entities.Entitlement{Recipient: alice, Amount: big.NewInt(1)}
	err := EvaluateClaim(entities.Drop{}, entitlement, true, false, nil)
	if !errors.Is(err, domainerrors.ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof against zero root, got %v", err)
	}
}

func TestAuthorizeOwner(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	drop := entities.Drop{Owner: owner}
	if err := AuthorizeOwner(drop, owner); err != nil {
		t.Fatalf("expected owner to be authorized, got %v", err)
	}
	if err := AuthorizeOwner(drop, common.HexToAddress("0x01")); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := AuthorizeOwner(entities.Drop{}, common.Address{}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected zero caller to be rejected")
	}
}

package queries

import (
	"context"
	"log/slog"
	"math/big"

	application "merkledrop/contexts/token-distribution/merkle-commitment/application"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/services"
	"merkledrop/contexts/token-distribution/merkle-commitment/ports"

	"github.com/ethereum/go-ethereum/common"
)

type GetProofQuery struct {
	Input     string
	Recipient common.Address
	// Amount is optional; when nil the first allocation of Recipient is used.
	Amount *big.Int
}

type GetProofResult struct {
	Root       common.Hash
	Allocation entities.Allocation
	Leaf       common.Hash
	Proof      []common.Hash
}

type GetProofUseCase struct {
	Source ports.AllocationSource
	Logger *slog.Logger
}

func (u GetProofUseCase) Execute(ctx context.Context, query GetProofQuery) (GetProofResult, error) {
	logger := application.ResolveLogger(u.Logger)

	allocations, err := u.Source.LoadAllocations(ctx, query.Input)
	if err != nil {
		return GetProofResult{}, err
	}
	tree, err := services.BuildTree(allocations)
	if err != nil {
		return GetProofResult{}, err
	}

	target, found := resolveTarget(allocations, query)
	if !found {
		logger.Warn("proof requested for unknown allocation",
			"event", "merkle_commitment_proof_not_found",
			"module", "token-distribution/merkle-commitment",
			"layer", "application",
			"recipient", query.Recipient.Hex(),
		)
		return GetProofResult{}, domainerrors.ErrNotFound
	}
	proof, err := tree.Proof(target)
	if err != nil {
		return GetProofResult{}, err
	}

	return GetProofResult{
		Root:       tree.Root(),
		Allocation: target,
		Leaf:       target.Leaf(),
		Proof:      proof,
	}, nil
}

func resolveTarget(allocations []entities.Allocation, query GetProofQuery) (entities.Allocation, bool) {
	if query.Amount != nil {
		target := entities.Allocation{Recipient: query.Recipient, Amount: query.Amount}
		return target, target.Validate() == nil
	}
	for _, allocation := range allocations {
		if allocation.Recipient == query.Recipient {
			return allocation, true
		}
	}
	return entities.Allocation{}, false
}

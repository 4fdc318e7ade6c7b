package queries

import (
	"context"
	"log/slog"

	application "merkledrop/contexts/token-distribution/merkle-commitment/application"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/services"
	"merkledrop/contexts/token-distribution/merkle-commitment/ports"

	"github.com/ethereum/go-ethereum/common"
)

type VerifyDistributionQuery struct {
	Location string
	// Root overrides the artifact root when set, e.g. the root registered on the engine.
	Root *common.Hash
}

type VerifyDistributionResult struct {
	Root    common.Hash
	Checked int
	Invalid []entities.DistributionEntry
}

func (r VerifyDistributionResult) Valid() bool {
	return len(r.Invalid) == 0
}

// VerifyDistributionUseCase re-folds every published proof against the root.
type VerifyDistributionUseCase struct {
	Source ports.DistributionSource
	Logger *slog.Logger
}

func (u VerifyDistributionUseCase) Execute(ctx context.Context, query VerifyDistributionQuery) (VerifyDistributionResult, error) {
	logger := application.ResolveLogger(u.Logger)

	distribution, err := u.Source.ReadDistribution(ctx, query.Location)
	if err != nil {
		return VerifyDistributionResult{}, err
	}
	if len(distribution.Entries) == 0 {
		return VerifyDistributionResult{}, domainerrors.ErrInvalidDistribution
	}
	root := distribution.Root
	if query.Root != nil {
		root = *query.Root
	}

	result := VerifyDistributionResult{Root: root, Checked: len(distribution.Entries)}
	for _, entry := range distribution.Entries {
		if !services.VerifyEntry(root, entry) {
			result.Invalid = append(result.Invalid, entry)
		}
	}

	logger.Info("distribution verified",
		"event", "merkle_commitment_distribution_verified",
		"module", "token-distribution/merkle-commitment",
		"layer", "application",
		"root", root.Hex(),
		"checked", result.Checked,
		"invalid", len(result.Invalid),
	)
	return result, nil
}

package commands

import (
	"context"
	"log/slog"
	"strings"

	application "merkledrop/contexts/token-distribution/merkle-commitment/application"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/merkle-commitment/domain/errors"
	"merkledrop/contexts/token-distribution/merkle-commitment/domain/services"
	"merkledrop/contexts/token-distribution/merkle-commitment/ports"
)

type BuildCommitmentCommand struct {
	Input  string
	Output string
}

type BuildCommitmentResult struct {
	Distribution entities.Distribution
}

type BuildCommitmentUseCase struct {
	Source ports.AllocationSource
	Sink   ports.DistributionSink
	Logger *slog.Logger
}

// Execute loads the allocations, builds the tree and publishes the artifact.
// Nothing is written when the build fails.
func (u BuildCommitmentUseCase) Execute(ctx context.Context, cmd BuildCommitmentCommand) (BuildCommitmentResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.Input) == "" {
		return BuildCommitmentResult{}, domainerrors.ErrEmptyAllocations
	}

	allocations, err := u.Source.LoadAllocations(ctx, cmd.Input)
	if err != nil {
		logger.Error("build commitment failed loading allocations",
			"event", "merkle_commitment_load_failed",
			"module", "token-distribution/merkle-commitment",
			"layer", "application",
			"input", cmd.Input,
			"error", err.Error(),
		)
		return BuildCommitmentResult{}, err
	}

	distribution, err := services.BuildDistribution(allocations)
	if err != nil {
		logger.Warn("build commitment rejected allocations",
			"event", "merkle_commitment_build_rejected",
			"module", "token-distribution/merkle-commitment",
			"layer", "application",
			"input", cmd.Input,
			"error", err.Error(),
		)
		return BuildCommitmentResult{}, err
	}

	if strings.TrimSpace(cmd.Output) != "" && u.Sink != nil {
		if err := u.Sink.WriteDistribution(ctx, cmd.Output, distribution); err != nil {
			logger.Error("build commitment failed writing artifact",
				"event", "merkle_commitment_write_failed",
				"module", "token-distribution/merkle-commitment",
				"layer", "application",
				"output", cmd.Output,
				"error", err.Error(),
			)
			return BuildCommitmentResult{}, err
		}
	}

	logger.Info("commitment built",
		"event", "merkle_commitment_built",
		"module", "token-distribution/merkle-commitment",
		"layer", "application",
		"root", distribution.Root.Hex(),
		"leaf_count", distribution.LeafCount,
		"total", distribution.Total.String(),
	)
	return BuildCommitmentResult{Distribution: distribution}, nil
}

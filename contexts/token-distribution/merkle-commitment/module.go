package merklecommitment

import (
	"log/slog"

	fileadapter "merkledrop/contexts/token-distribution/merkle-commitment/adapters/file"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/commands"
	"merkledrop/contexts/token-distribution/merkle-commitment/application/queries"
	"merkledrop/contexts/token-distribution/merkle-commitment/ports"
)

// Module is the composition surface of the commitment builder.
type Module struct {
	Build  commands.BuildCommitmentUseCase
	Proof  queries.GetProofUseCase
	Verify queries.VerifyDistributionUseCase
}

type Dependencies struct {
	Allocations   ports.AllocationSource
	Sink          ports.DistributionSink
	Distributions ports.DistributionSource
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Build: commands.BuildCommitmentUseCase{
			Source: deps.Allocations,
			Sink:   deps.Sink,
			Logger: deps.Logger,
		},
		Proof: queries.GetProofUseCase{
			Source: deps.Allocations,
			Logger: deps.Logger,
		},
		Verify: queries.VerifyDistributionUseCase{
			Source: deps.Distributions,
			Logger: deps.Logger,
		},
	}
}

// NewFileModule wires the builder against the local file adapter.
func NewFileModule(store *fileadapter.Store, logger *slog.Logger) Module {
	if store == nil {
		store = fileadapter.NewStore(logger)
	}
	return NewModule(Dependencies{
		Allocations:   store,
		Sink:          store,
		Distributions: store,
		Logger:        logger,
	})
}

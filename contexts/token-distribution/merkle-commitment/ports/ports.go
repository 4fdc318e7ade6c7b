package ports

import (
	"context"

	"merkledrop/contexts/token-distribution/merkle-commitment/domain/entities"
)

// AllocationSource loads the allocation list from an operator-provided location.
type AllocationSource interface {
	LoadAllocations(ctx context.Context, location string) ([]entities.Allocation, error)
}

// DistributionSink publishes the built artifact.
type DistributionSink interface {
	WriteDistribution(ctx context.Context, location string, distribution entities.Distribution) error
}

// DistributionSource reads a previously published artifact back.
type DistributionSource interface {
	ReadDistribution(ctx context.Context, location string) (entities.Distribution, error)
}

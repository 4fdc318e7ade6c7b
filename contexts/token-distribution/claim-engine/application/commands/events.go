package commands

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/ports"
	contractsv1 "merkledrop/contracts/gen/events/v1"
)

const (
	EventRootSet        = "drop.root_set"
	EventTokenSet       = "drop.token_set"
	EventEntitlementSet = "drop.entitlement_set"
	EventClaimed        = "drop.claimed"

	sourceService = "claim-engine"
)

func appendEvent(
	ctx context.Context,
	state ports.StateWriter,
	ids ports.IDGenerator,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	payload map[string]any,
) error {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return state.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    contractsv1.CurrentSchemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             data,
	})
}

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"merkledrop/contexts/token-distribution/claim-engine/application/commands"
	contractsv1 "merkledrop/contracts/gen/events/v1"
	"merkledrop/internal/platform/messaging"
)

// dropEventTopics are the outbox event types the claim engine emits.
var dropEventTopics = []string{
	commands.EventRootSet,
	commands.EventTokenSet,
	commands.EventEntitlementSet,
	commands.EventClaimed,
}

// eventAudit is the worker's consumer: it writes every relayed drop event to
// the structured log so the relay never delivers into an empty bus.
type eventAudit struct {
	logger *slog.Logger
}

func (a eventAudit) subscribe(ctx context.Context, bus *messaging.Bus) error {
	for _, topic := range dropEventTopics {
		if err := bus.Subscribe(ctx, topic, "drop-audit", a.Handle); err != nil {
			return err
		}
	}
	return nil
}

func (a eventAudit) Handle(_ context.Context, event contractsv1.Envelope) error {
	var payload map[string]any
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	a.logger.Info("drop event relayed",
		"event", "bootstrap_drop_event_audited",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"occurred_at", event.OccurredAt,
		"payload", payload,
	)
	return nil
}

package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CurrentSchemaVersion is stamped on every envelope emitted by the drop service.
const CurrentSchemaVersion = 1

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate checks the fields every consumer relies on for routing and dedupe.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.EventID) == "" ||
		strings.TrimSpace(e.EventType) == "" ||
		strings.TrimSpace(e.PartitionKey) == "" ||
		e.OccurredAt.IsZero() ||
		e.SchemaVersion <= 0 ||
		!json.Valid(e.Data) {
		return ErrInvalidEnvelope
	}
	return nil
}

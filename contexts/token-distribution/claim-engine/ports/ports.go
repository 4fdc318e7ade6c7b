package ports

import (
	"context"
	"errors"
	"math/big"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	contractsv1 "merkledrop/contracts/gen/events/v1"

	"github.com/ethereum/go-ethereum/common"
)

// StateReader reads the drop state. Inside an Update it observes staged writes.
type StateReader interface {
	// GetDrop returns ErrDropNotInitialized until the drop row exists.
	GetDrop(ctx context.Context) (entities.Drop, error)
	GetEntitlement(ctx context.Context, recipient common.Address) (entities.Entitlement, bool, error)
	GetClaim(ctx context.Context, recipient common.Address) (entities.Claim, bool, error)
}

// StateWriter stages writes inside one state transaction.
type StateWriter interface {
	StateReader
	SaveDrop(ctx context.Context, drop entities.Drop) error
	PutEntitlement(ctx context.Context, entitlement entities.Entitlement) error
	// InsertClaim fails with ErrClaimed when the recipient already has a claim.
	InsertClaim(ctx context.Context, claim entities.Claim) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// StateStore owns transaction boundaries for one drop.
//
// Update serializes mutating calls and commits every staged write together, or
// none when fn returns an error. The context passed to fn carries the
// transaction: a nested Update or View made with it joins the transaction and
// sees staged writes, which is how a reentrant claim observes its own pending insert.
type StateStore interface {
	View(ctx context.Context, fn func(ctx context.Context, state StateReader) error) error
	Update(ctx context.Context, fn func(ctx context.Context, state StateWriter) error) error
}

// ErrTransferPending is wrapped by a ledger once a transfer has been handed to
// the network but its outcome is not known yet. The payout may still land, so
// callers must keep the claim recorded instead of rolling it back.
var ErrTransferPending = errors.New("transfer broadcast, outcome pending")

// AssetLedger moves the drop's asset to a recipient. It is called inside the
// claim transaction with the transaction-carrying context. Errors other than
// ErrTransferPending mean no asset moved.
type AssetLedger interface {
	Transfer(ctx context.Context, token common.Address, to common.Address, amount *big.Int) error
}

// BalanceReader is implemented by ledgers that can report holder balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token common.Address, holder common.Address) (*big.Int, error)
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts claim/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the drop outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	application "merkledrop/contexts/token-distribution/claim-engine/application"
	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
)

// Store is an in-memory adapter implementing the claim engine ports for local
// runtime and tests. It is not intended as production persistence.
//
// Update holds writeMu for the whole transaction and stages writes in an
// overlay that is applied under mu on success.
type Store struct {
	writeMu      sync.Mutex
	mu           sync.RWMutex
	drop         *entities.Drop
	entitlements map[common.Address]entities.Entitlement
	claims       map[common.Address]entities.Claim
	outbox       map[string]ports.OutboxMessage
	outboxOrder  []string
	outboxSent   map[string]time.Time
	sequence     uint64
	logger       *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		entitlements: make(map[common.Address]entities.Entitlement),
		claims:       make(map[common.Address]entities.Claim),
		outbox:       make(map[string]ports.OutboxMessage),
		outboxOrder:  make([]string, 0),
		outboxSent:   make(map[string]time.Time),
		logger:       application.ResolveLogger(logger),
	}
}

type txContextKey struct {
	store *Store
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, state ports.StateReader) error) error {
	if tx, ok := ctx.Value(txContextKey{store: s}).(*stagedTx); ok {
		return fn(ctx, tx)
	}
	return fn(ctx, committedReader{store: s})
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, state ports.StateWriter) error) error {
	if tx, ok := ctx.Value(txContextKey{store: s}).(*stagedTx); ok {
		// Nested call: behave like a savepoint inside the outer transaction.
		saved := tx.snapshot()
		if err := fn(ctx, tx); err != nil {
			tx.restore(saved)
			return err
		}
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := newStagedTx(s)
	if err := fn(context.WithValue(ctx, txContextKey{store: s}, tx), tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *stagedTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.drop != nil {
		drop := *tx.drop
		s.drop = &drop
	}
	for recipient, entitlement := range tx.entitlements {
		s.entitlements[recipient] = entitlement
	}
	for recipient, claim := range tx.claims {
		s.claims[recipient] = claim
	}
	for _, message := range tx.outbox {
		s.outbox[message.OutboxID] = message
		s.outboxOrder = append(s.outboxOrder, message.OutboxID)
	}
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

// OutboxEvents returns every committed outbox message in append order.
func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("drop-%d", value), nil
}

type committedReader struct {
	store *Store
}

func (r committedReader) GetDrop(_ context.Context) (entities.Drop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if r.store.drop == nil {
		return entities.Drop{}, domainerrors.ErrDropNotInitialized
	}
	return *r.store.drop, nil
}

func (r committedReader) GetEntitlement(_ context.Context, recipient common.Address) (entities.Entitlement, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entitlement, ok := r.store.entitlements[recipient]
	return cloneEntitlement(entitlement), ok, nil
}

func (r committedReader) GetClaim(_ context.Context, recipient common.Address) (entities.Claim, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	claim, ok := r.store.claims[recipient]
	return cloneClaim(claim), ok, nil
}

// stagedTx is the write overlay of one Update.
type stagedTx struct {
	committed    committedReader
	drop         *entities.Drop
	entitlements map[common.Address]entities.Entitlement
	claims       map[common.Address]entities.Claim
	outbox       []ports.OutboxMessage
}

func newStagedTx(s *Store) *stagedTx {
	return &stagedTx{
		committed:    committedReader{store: s},
		entitlements: make(map[common.Address]entities.Entitlement),
		claims:       make(map[common.Address]entities.Claim),
	}
}

func (tx *stagedTx) GetDrop(ctx context.Context) (entities.Drop, error) {
	if tx.drop != nil {
		return *tx.drop, nil
	}
	return tx.committed.GetDrop(ctx)
}

func (tx *stagedTx) GetEntitlement(ctx context.Context, recipient common.Address) (entities.Entitlement, bool, error) {
	if entitlement, ok := tx.entitlements[recipient]; ok {
		return cloneEntitlement(entitlement), true, nil
	}
	return tx.committed.GetEntitlement(ctx, recipient)
}

func (tx *stagedTx) GetClaim(ctx context.Context, recipient common.Address) (entities.Claim, bool, error) {
	if claim, ok := tx.claims[recipient]; ok {
		return cloneClaim(claim), true, nil
	}
	return tx.committed.GetClaim(ctx, recipient)
}

func (tx *stagedTx) SaveDrop(_ context.Context, drop entities.Drop) error {
	tx.drop = &drop
	return nil
}

func (tx *stagedTx) PutEntitlement(_ context.Context, entitlement entities.Entitlement) error {
	tx.entitlements[entitlement.Recipient] = cloneEntitlement(entitlement)
	return nil
}

func (tx *stagedTx) InsertClaim(ctx context.Context, claim entities.Claim) error {
	if _, exists, err := tx.GetClaim(ctx, claim.Recipient); err != nil {
		return err
	} else if exists {
		return domainerrors.ErrClaimed
	}
	tx.claims[claim.Recipient] = cloneClaim(claim)
	return nil
}

func (tx *stagedTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	tx.outbox = append(tx.outbox, ports.OutboxMessage{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt,
	})
	return nil
}

type txSnapshot struct {
	drop         *entities.Drop
	entitlements map[common.Address]entities.Entitlement
	claims       map[common.Address]entities.Claim
	outboxLen    int
}

func (tx *stagedTx) snapshot() txSnapshot {
	saved := txSnapshot{
		drop:         tx.drop,
		entitlements: make(map[common.Address]entities.Entitlement, len(tx.entitlements)),
		claims:       make(map[common.Address]entities.Claim, len(tx.claims)),
		outboxLen:    len(tx.outbox),
	}
	for k, v := range tx.entitlements {
		saved.entitlements[k] = v
	}
	for k, v := range tx.claims {
		saved.claims[k] = v
	}
	return saved
}

func (tx *stagedTx) restore(saved txSnapshot) {
	tx.drop = saved.drop
	tx.entitlements = saved.entitlements
	tx.claims = saved.claims
	tx.outbox = tx.outbox[:saved.outboxLen]
}

func cloneEntitlement(entitlement entities.Entitlement) entities.Entitlement {
	if entitlement.Amount != nil {
		entitlement.Amount = new(big.Int).Set(entitlement.Amount)
	}
	return entitlement
}

func cloneClaim(claim entities.Claim) entities.Claim {
	if claim.Amount != nil {
		claim.Amount = new(big.Int).Set(claim.Amount)
	}
	return claim
}

package badgeradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists one drop in an embedded badger database.
//
// Key layout, all under "drop/<drop_id>/":
//
//	meta                            drop row
//	ent/<recipient>                 entitlement
//	claim/<recipient>               claim
//	outbox/pending/<nanos>/<id>     pending outbox message, ordered by creation
//	outbox/index/<id>               pending key of message id
//	outbox/sent/<id>                sent timestamp
type Store struct {
	db      *badger.DB
	dropID  string
	prefix  string
	writeMu sync.Mutex
	logger  *slog.Logger
}

func NewStore(db *badger.DB, dropID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	dropID = strings.TrimSpace(dropID)
	return &Store{
		db:     db,
		dropID: dropID,
		prefix: "drop/" + dropID + "/",
		logger: logger,
	}
}

type txContextKey struct {
	store *Store
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, state ports.StateReader) error) error {
	if tx, ok := ctx.Value(txContextKey{store: s}).(*stateTx); ok {
		return fn(ctx, tx)
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(ctx, &stateTx{store: s, txn: txn})
	})
}

// Update runs fn in a single badger read-write transaction. A nested Update on
// the transaction context joins the outer transaction without a savepoint;
// callers keep their checks ahead of their writes.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, state ports.StateWriter) error) error {
	if tx, ok := ctx.Value(txContextKey{store: s}).(*stateTx); ok {
		return fn(ctx, tx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		tx := &stateTx{store: s, txn: txn}
		return fn(context.WithValue(ctx, txContextKey{store: s}, tx), tx)
	})
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(s.prefix + "outbox/pending/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: limit})
		defer it.Close()
		for it.Rewind(); it.Valid() && len(messages) < limit; it.Next() {
			var record outboxRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			messages = append(messages, record.toPort())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		indexKey := []byte(s.prefix + "outbox/index/" + outboxID)
		item, err := txn.Get(indexKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		if err != nil {
			return err
		}
		pendingKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(pendingKey); err != nil {
			return err
		}
		if err := txn.Delete(indexKey); err != nil {
			return err
		}
		stamp, err := sentAt.UTC().MarshalText()
		if err != nil {
			return err
		}
		return txn.Set([]byte(s.prefix+"outbox/sent/"+outboxID), stamp)
	})
}

// stateTx implements ports.StateWriter on a badger transaction. Badger
// transactions read their own writes, so staged rows are visible to later reads.
type stateTx struct {
	store *Store
	txn   *badger.Txn
}

func (t *stateTx) key(parts ...string) []byte {
	return []byte(t.store.prefix + strings.Join(parts, "/"))
}

func (t *stateTx) get(key []byte, out any) (bool, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (t *stateTx) put(key []byte, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.txn.Set(key, payload)
}

func (t *stateTx) GetDrop(_ context.Context) (entities.Drop, error) {
	var record dropRecord
	found, err := t.get(t.key("meta"), &record)
	if err != nil {
		return entities.Drop{}, err
	}
	if !found {
		return entities.Drop{}, domainerrors.ErrDropNotInitialized
	}
	return record.toEntity(), nil
}

func (t *stateTx) GetEntitlement(_ context.Context, recipient common.Address) (entities.Entitlement, bool, error) {
	var record entitlementRecord
	found, err := t.get(t.key("ent", addressKey(recipient)), &record)
	if err != nil || !found {
		return entities.Entitlement{}, false, err
	}
	entitlement, err := record.toEntity()
	if err != nil {
		return entities.Entitlement{}, false, err
	}
	return entitlement, true, nil
}

func (t *stateTx) GetClaim(_ context.Context, recipient common.Address) (entities.Claim, bool, error) {
	var record claimRecord
	found, err := t.get(t.key("claim", addressKey(recipient)), &record)
	if err != nil || !found {
		return entities.Claim{}, false, err
	}
	claim, err := record.toEntity()
	if err != nil {
		return entities.Claim{}, false, err
	}
	return claim, true, nil
}

func (t *stateTx) SaveDrop(_ context.Context, drop entities.Drop) error {
	if drop.DropID != t.store.dropID {
		return fmt.Errorf("%w: drop %q written through store for %q", domainerrors.ErrRepositoryInvariantBroke, drop.DropID, t.store.dropID)
	}
	return t.put(t.key("meta"), dropRecord{
		DropID:    drop.DropID,
		Owner:     drop.Owner.Hex(),
		Root:      drop.Root.Hex(),
		Token:     drop.Token.Hex(),
		UpdatedAt: drop.UpdatedAt.UTC(),
	})
}

func (t *stateTx) PutEntitlement(_ context.Context, entitlement entities.Entitlement) error {
	return t.put(t.key("ent", addressKey(entitlement.Recipient)), entitlementRecord{
		Recipient: entitlement.Recipient.Hex(),
		Amount:    entitlement.Amount.String(),
		UpdatedAt: entitlement.UpdatedAt.UTC(),
	})
}

func (t *stateTx) InsertClaim(ctx context.Context, claim entities.Claim) error {
	if _, exists, err := t.GetClaim(ctx, claim.Recipient); err != nil {
		return err
	} else if exists {
		return domainerrors.ErrClaimed
	}
	return t.put(t.key("claim", addressKey(claim.Recipient)), claimRecord{
		ClaimID:   claim.ClaimID,
		Recipient: claim.Recipient.Hex(),
		Amount:    claim.Amount.String(),
		Root:      claim.Root.Hex(),
		Token:     claim.Token.Hex(),
		ClaimedAt: claim.ClaimedAt.UTC(),
	})
}

func (t *stateTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	pendingKey := t.key("outbox", "pending", fmt.Sprintf("%020d", envelope.OccurredAt.UnixNano()), envelope.EventID)
	if err := t.put(pendingKey, outboxRecord{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}); err != nil {
		return err
	}
	return t.txn.Set(t.key("outbox", "index", envelope.EventID), pendingKey)
}

type dropRecord struct {
	DropID    string    `json:"drop_id"`
	Owner     string    `json:"owner"`
	Root      string    `json:"root"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r dropRecord) toEntity() entities.Drop {
	return entities.Drop{
		DropID:    r.DropID,
		Owner:     common.HexToAddress(r.Owner),
		Root:      common.HexToHash(r.Root),
		Token:     common.HexToAddress(r.Token),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type entitlementRecord struct {
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r entitlementRecord) toEntity() (entities.Entitlement, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return entities.Entitlement{}, err
	}
	return entities.Entitlement{
		Recipient: common.HexToAddress(r.Recipient),
		Amount:    amount,
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

type claimRecord struct {
	ClaimID   string    `json:"claim_id"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Root      string    `json:"root"`
	Token     string    `json:"token"`
	ClaimedAt time.Time `json:"claimed_at"`
}

func (r claimRecord) toEntity() (entities.Claim, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return entities.Claim{}, err
	}
	return entities.Claim{
		ClaimID:   r.ClaimID,
		Recipient: common.HexToAddress(r.Recipient),
		Amount:    amount,
		Root:      common.HexToHash(r.Root),
		Token:     common.HexToAddress(r.Token),
		ClaimedAt: r.ClaimedAt.UTC(),
	}, nil
}

type outboxRecord struct {
	OutboxID     string    `json:"outbox_id"`
	EventType    string    `json:"event_type"`
	PartitionKey string    `json:"partition_key"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r outboxRecord) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     r.OutboxID,
		EventType:    r.EventType,
		PartitionKey: r.PartitionKey,
		Payload:      r.Payload,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func addressKey(address common.Address) string {
	return strings.ToLower(strings.TrimPrefix(address.Hex(), "0x"))
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: stored amount %q", domainerrors.ErrRepositoryInvariantBroke, value)
	}
	return amount, nil
}

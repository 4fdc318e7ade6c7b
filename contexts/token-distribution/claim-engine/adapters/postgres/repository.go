package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"merkledrop/contexts/token-distribution/claim-engine/domain/entities"
	domainerrors "merkledrop/contexts/token-distribution/claim-engine/domain/errors"
	"merkledrop/contexts/token-distribution/claim-engine/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	claimUniqueRecipient = "drop_claims_unique_recipient"
)

// Repository persists one drop in Postgres. Update locks the drop row with
// SELECT ... FOR UPDATE so mutating calls on the drop are serialized across
// processes; a nested Update on the transaction context runs as a savepoint.
type Repository struct {
	db     *gorm.DB
	dropID string
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, dropID string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		dropID: strings.TrimSpace(dropID),
		logger: logger,
	}
}

// Migrate creates or updates the drop tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&dropModel{}, &entitlementModel{}, &claimModel{}, &outboxModel{})
}

type txContextKey struct {
	repo *Repository
}

func (r *Repository) txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{repo: r}).(*gorm.DB)
	return tx, ok
}

func (r *Repository) View(ctx context.Context, fn func(ctx context.Context, state ports.StateReader) error) error {
	if tx, ok := r.txFrom(ctx); ok {
		return fn(ctx, r.scoped(tx))
	}
	return fn(ctx, r.scoped(r.db.WithContext(ctx)))
}

func (r *Repository) Update(ctx context.Context, fn func(ctx context.Context, state ports.StateWriter) error) error {
	if tx, ok := r.txFrom(ctx); ok {
		return tx.Transaction(func(nested *gorm.DB) error {
			return fn(context.WithValue(ctx, txContextKey{repo: r}, nested), r.scoped(nested))
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked dropModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("drop_id = ?", r.dropID).
			Limit(1).
			Find(&locked).
			Error
		if err != nil {
			return err
		}
		return fn(context.WithValue(ctx, txContextKey{repo: r}, tx), r.scoped(tx))
	})
}

func (r *Repository) scoped(db *gorm.DB) stateTx {
	return stateTx{db: db, dropID: r.dropID}
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("drop_id = ? AND status = ?", r.dropID, outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	sent := sentAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sent,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

// stateTx implements ports.StateWriter on a gorm handle, usually a transaction.
type stateTx struct {
	db     *gorm.DB
	dropID string
}

func (s stateTx) GetDrop(ctx context.Context) (entities.Drop, error) {
	var row dropModel
	err := s.db.WithContext(ctx).Where("drop_id = ?", s.dropID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Drop{}, domainerrors.ErrDropNotInitialized
		}
		return entities.Drop{}, err
	}
	return row.toEntity(), nil
}

func (s stateTx) GetEntitlement(ctx context.Context, recipient common.Address) (entities.Entitlement, bool, error) {
	var row entitlementModel
	err := s.db.WithContext(ctx).
		Where("drop_id = ? AND recipient = ?", s.dropID, recipient.Hex()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Entitlement{}, false, nil
		}
		return entities.Entitlement{}, false, err
	}
	entitlement, err := row.toEntity()
	if err != nil {
		return entities.Entitlement{}, false, err
	}
	return entitlement, true, nil
}

func (s stateTx) GetClaim(ctx context.Context, recipient common.Address) (entities.Claim, bool, error) {
	var row claimModel
	err := s.db.WithContext(ctx).
		Where("drop_id = ? AND recipient = ?", s.dropID, recipient.Hex()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Claim{}, false, nil
		}
		return entities.Claim{}, false, err
	}
	claim, err := row.toEntity()
	if err != nil {
		return entities.Claim{}, false, err
	}
	return claim, true, nil
}

func (s stateTx) SaveDrop(ctx context.Context, drop entities.Drop) error {
	if drop.DropID != s.dropID {
		return fmt.Errorf("%w: drop %q written through repository for %q", domainerrors.ErrRepositoryInvariantBroke, drop.DropID, s.dropID)
	}
	row := dropModelFromEntity(drop)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "drop_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "root", "token", "updated_at"}),
		}).
		Create(&row).
		Error
}

func (s stateTx) PutEntitlement(ctx context.Context, entitlement entities.Entitlement) error {
	row := entitlementModel{
		DropID:    s.dropID,
		Recipient: entitlement.Recipient.Hex(),
		Amount:    entitlement.Amount.String(),
		UpdatedAt: entitlement.UpdatedAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "drop_id"}, {Name: "recipient"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&row).
		Error
}

func (s stateTx) InsertClaim(ctx context.Context, claim entities.Claim) error {
	row := claimModel{
		ClaimID:   claim.ClaimID,
		DropID:    s.dropID,
		Recipient: claim.Recipient.Hex(),
		Amount:    claim.Amount.String(),
		Root:      claim.Root.Hex(),
		Token:     claim.Token.Hex(),
		ClaimedAt: claim.ClaimedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == claimUniqueRecipient {
				return domainerrors.ErrClaimed
			}
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func (s stateTx) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		DropID:       s.dropID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

type dropModel struct {
	DropID    string    `gorm:"column:drop_id;primaryKey"`
	Owner     string    `gorm:"column:owner;size:42"`
	Root      string    `gorm:"column:root;size:66"`
	Token     string    `gorm:"column:token;size:42"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (dropModel) TableName() string {
	return "drops"
}

func dropModelFromEntity(drop entities.Drop) dropModel {
	return dropModel{
		DropID:    drop.DropID,
		Owner:     drop.Owner.Hex(),
		Root:      drop.Root.Hex(),
		Token:     drop.Token.Hex(),
		UpdatedAt: drop.UpdatedAt.UTC(),
	}
}

func (m dropModel) toEntity() entities.Drop {
	return entities.Drop{
		DropID:    m.DropID,
		Owner:     common.HexToAddress(m.Owner),
		Root:      common.HexToHash(m.Root),
		Token:     common.HexToAddress(m.Token),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type entitlementModel struct {
	DropID    string    `gorm:"column:drop_id;primaryKey"`
	Recipient string    `gorm:"column:recipient;primaryKey;size:42"`
	Amount    string    `gorm:"column:amount;type:numeric(78,0)"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entitlementModel) TableName() string {
	return "drop_entitlements"
}

func (m entitlementModel) toEntity() (entities.Entitlement, error) {
	amount, err := parseAmount(m.Amount)
	if err != nil {
		return entities.Entitlement{}, err
	}
	return entities.Entitlement{
		Recipient: common.HexToAddress(m.Recipient),
		Amount:    amount,
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

type claimModel struct {
	ClaimID   string    `gorm:"column:claim_id;primaryKey"`
	DropID    string    `gorm:"column:drop_id;uniqueIndex:drop_claims_unique_recipient"`
	Recipient string    `gorm:"column:recipient;size:42;uniqueIndex:drop_claims_unique_recipient"`
	Amount    string    `gorm:"column:amount;type:numeric(78,0)"`
	Root      string    `gorm:"column:root;size:66"`
	Token     string    `gorm:"column:token;size:42"`
	ClaimedAt time.Time `gorm:"column:claimed_at"`
}

func (claimModel) TableName() string {
	return "drop_claims"
}

func (m claimModel) toEntity() (entities.Claim, error) {
	amount, err := parseAmount(m.Amount)
	if err != nil {
		return entities.Claim{}, err
	}
	return entities.Claim{
		ClaimID:   m.ClaimID,
		Recipient: common.HexToAddress(m.Recipient),
		Amount:    amount,
		Root:      common.HexToHash(m.Root),
		Token:     common.HexToAddress(m.Token),
		ClaimedAt: m.ClaimedAt.UTC(),
	}, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	DropID       string     `gorm:"column:drop_id;index"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "drop_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      m.Payload,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%w: stored amount %q", domainerrors.ErrRepositoryInvariantBroke, value)
	}
	return amount, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

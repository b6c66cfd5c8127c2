package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository keeps the poll record, voter markers and the vote outbox in
// Postgres. Poll expiry is enforced on read. Voter markers are scoped by poll
// id and SweepExpired never reclaims those of the live poll.
type Repository struct {
	db      *gorm.DB
	horizon time.Duration
	logger  *slog.Logger
}

func NewRepository(db *gorm.DB, horizon time.Duration, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if horizon <= 0 {
		horizon = ports.DefaultDurabilityHorizon
	}
	return &Repository{
		db:      db,
		horizon: horizon,
		logger:  logger,
	}
}

// Migrate creates or updates the live poll tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&pollModel{}, &voterModel{}, &outboxModel{}); err != nil {
		return r.logError("live_poll_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) Initialize(ctx context.Context, poll entities.Poll, now time.Time) error {
	row, err := pollModelFromEntity(poll, now.UTC().Add(r.horizon))
	if err != nil {
		return r.logError("live_poll_repo_initialize_encode_failed", err, "poll_id", poll.PollID)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "poll_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"poll_id":    row.PollID,
			"question":   row.Question,
			"options":    row.Options,
			"deadline":   row.Deadline,
			"tally":      row.Tally,
			"version":    row.Version,
			"expires_at": gorm.Expr("GREATEST(live_polls.expires_at, EXCLUDED.expires_at)"),
			"created_at": row.CreatedAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("live_poll_repo_initialize_failed", create.Error, "poll_id", poll.PollID)
	}
	return nil
}

func (r *Repository) LoadPoll(ctx context.Context, now time.Time) (entities.Poll, error) {
	return loadPoll(ctx, r.db, r, now)
}

func (r *Repository) Update(
	ctx context.Context,
	now time.Time,
	fn func(ctx context.Context, tx ports.PollTx) error,
) error {
	now = now.UTC()
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &pgTx{db: db, repo: r, now: now})
	})
	if err != nil && isRetryable(err) {
		return domainerrors.ErrConflict
	}
	return err
}

func (r *Repository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	removed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		polls := tx.Where("expires_at <= ?", now).Delete(&pollModel{})
		if polls.Error != nil {
			return polls.Error
		}
		live := tx.Model(&pollModel{}).Select("poll_id")
		voters := tx.Where("expires_at <= ?", now).
			Where("poll_id NOT IN (?)", live).
			Delete(&voterModel{})
		if voters.Error != nil {
			return voters.Error
		}
		removed = int(polls.RowsAffected + voters.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, r.logError("live_poll_repo_sweep_expired_failed", err)
	}
	return removed, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("live_poll_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("live_poll_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "polling/live-poll",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("live poll repository operation failed", fields...)
	return err
}

func loadPoll(ctx context.Context, db *gorm.DB, r *Repository, now time.Time) (entities.Poll, error) {
	var row pollModel
	err := db.WithContext(ctx).
		Where("poll_key = ?", entities.PollKey().String()).
		Where("expires_at > ?", now.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("live_poll_repo_load_poll_failed", err)
	}
	poll, err := row.toEntity()
	if err != nil {
		return entities.Poll{}, r.logError("live_poll_repo_decode_poll_failed", err, "poll_id", row.PollID)
	}
	return poll, nil
}

// pgTx is one database transaction. The version predicate on the poll row
// turns a concurrent commit into zero affected rows.
type pgTx struct {
	db   *gorm.DB
	repo *Repository
	now  time.Time
	poll *entities.Poll
}

func (tx *pgTx) LoadPoll(ctx context.Context) (entities.Poll, error) {
	if tx.poll != nil {
		return tx.poll.Clone(), nil
	}
	poll, err := loadPoll(ctx, tx.db, tx.repo, tx.now)
	if err != nil {
		return entities.Poll{}, err
	}
	tx.poll = &poll
	return poll.Clone(), nil
}

func (tx *pgTx) SavePoll(ctx context.Context, poll entities.Poll) error {
	tally, err := encodeTally(poll.Tally)
	if err != nil {
		return tx.repo.logError("live_poll_repo_save_poll_encode_failed", err, "poll_id", poll.PollID)
	}
	result := tx.db.WithContext(ctx).
		Model(&pollModel{}).
		Where("poll_key = ?", entities.PollKey().String()).
		Where("poll_id = ?", poll.PollID).
		Where("version = ?", int64(poll.Version)-1).
		Updates(map[string]any{
			"tally":      tally,
			"version":    int64(poll.Version),
			"updated_at": poll.UpdatedAt.UTC(),
			"expires_at": gorm.Expr("GREATEST(expires_at, ?)", tx.now.Add(tx.repo.horizon)),
		})
	if result.Error != nil {
		return tx.repo.logError("live_poll_repo_save_poll_failed", result.Error,
			"poll_id", poll.PollID,
			"version", poll.Version,
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	saved := poll.Clone()
	tx.poll = &saved
	return nil
}

// HasVoted counts any marker for the key. Expired markers of an earlier poll
// id can never match the live poll.
func (tx *pgTx) HasVoted(ctx context.Context, pollID string, identity string) (bool, error) {
	var count int64
	err := tx.db.WithContext(ctx).
		Model(&voterModel{}).
		Where("poll_id = ? AND identity = ?", pollID, identity).
		Count(&count).
		Error
	if err != nil {
		return false, tx.repo.logError("live_poll_repo_has_voted_failed", err,
			"poll_id", pollID,
			"voter", identity,
		)
	}
	return count > 0, nil
}

// MarkVoted inserts the marker; the primary key turns a concurrent second
// vote into ErrAlreadyVoted.
func (tx *pgTx) MarkVoted(ctx context.Context, pollID string, identity string) error {
	expiresAt, err := tx.markerExpiry(ctx, pollID)
	if err != nil {
		return err
	}
	row := voterModel{
		PollID:    pollID,
		Identity:  identity,
		ExpiresAt: expiresAt,
		CreatedAt: tx.now,
	}
	if err := tx.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return tx.repo.logError("live_poll_repo_mark_voted_failed", err,
			"poll_id", pollID,
			"voter", identity,
		)
	}
	return nil
}

func (tx *pgTx) markerExpiry(ctx context.Context, pollID string) (time.Time, error) {
	poll, err := tx.LoadPoll(ctx)
	if errors.Is(err, domainerrors.ErrPollNotFound) || (err == nil && poll.PollID != pollID) {
		return tx.now.Add(tx.repo.horizon), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return poll.MarkerExpiry(tx.now, tx.repo.horizon), nil
}

func (tx *pgTx) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return tx.repo.logError("live_poll_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = tx.now
	}
	create := tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return tx.repo.logError("live_poll_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := tx.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return tx.repo.logError("live_poll_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isRetryable reports serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var _ ports.PollStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.ExpirySweeper = (*Repository)(nil)

package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/ports"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultNamespace = "livepoll"

// Store keeps the poll and voter markers as Redis keys with native expiry.
// A voter key is written to outlive both its poll key and the poll deadline.
// One atomic unit is an optimistic WATCH/MULTI/EXEC transaction.
type Store struct {
	client    *redis.Client
	namespace string
	horizon   time.Duration
	logger    *slog.Logger
}

func NewStore(client *redis.Client, namespace string, horizon time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	if horizon <= 0 {
		horizon = ports.DefaultDurabilityHorizon
	}
	return &Store{
		client:    client,
		namespace: namespace,
		horizon:   horizon,
		logger:    logger,
	}
}

type pollDocument struct {
	PollID    string            `json:"poll_id"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
	Deadline  uint64            `json:"deadline"`
	Tally     map[uint32]uint32 `json:"tally"`
	Version   uint64            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func documentFromPoll(poll entities.Poll) pollDocument {
	return pollDocument{
		PollID:    poll.PollID,
		Question:  poll.Question,
		Options:   append([]string(nil), poll.Options...),
		Deadline:  poll.Deadline,
		Tally:     poll.Tally.Clone(),
		Version:   poll.Version,
		CreatedAt: poll.CreatedAt.UTC(),
		UpdatedAt: poll.UpdatedAt.UTC(),
	}
}

func (d pollDocument) toEntity() entities.Poll {
	tally := entities.Tally(d.Tally)
	if tally == nil {
		tally = entities.Tally{}
	}
	return entities.Poll{
		PollID:    d.PollID,
		Question:  d.Question,
		Options:   d.Options,
		Deadline:  d.Deadline,
		Tally:     tally,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// keyReader is the read surface shared by *redis.Client and *redis.Tx.
type keyReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

func (s *Store) pollKey() string {
	return entities.PollKey().Namespaced(s.namespace)
}

func (s *Store) voterKey(pollID string, identity string) string {
	return entities.VoterKey(pollID, identity).Namespaced(s.namespace)
}

func (s *Store) outboxHashKey() string {
	return s.namespace + ":outbox"
}

func (s *Store) outboxPendingKey() string {
	return s.namespace + ":outbox:pending"
}

func (s *Store) outboxSeqKey() string {
	return s.namespace + ":outbox:seq"
}

func (s *Store) Initialize(ctx context.Context, poll entities.Poll, _ time.Time) error {
	payload, err := json.Marshal(documentFromPoll(poll))
	if err != nil {
		return s.logError("live_poll_redis_initialize_encode_failed", err, "poll_id", poll.PollID)
	}
	key := s.pollKey()
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		ttl, err := s.extendedTTL(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domainerrors.ErrConflict
	}
	if err != nil {
		return s.logError("live_poll_redis_initialize_failed", err, "poll_id", poll.PollID)
	}
	return nil
}

func (s *Store) LoadPoll(ctx context.Context, _ time.Time) (entities.Poll, error) {
	return s.loadPoll(ctx, s.client)
}

func (s *Store) loadPoll(ctx context.Context, reader keyReader) (entities.Poll, error) {
	raw, err := reader.Get(ctx, s.pollKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	if err != nil {
		return entities.Poll{}, s.logError("live_poll_redis_load_poll_failed", err)
	}
	var doc pollDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entities.Poll{}, s.logError("live_poll_redis_decode_poll_failed", err)
	}
	return doc.toEntity(), nil
}

// Update watches the poll key, and every voter key fn reads, for the duration
// of fn. Any concurrent write to a watched key aborts EXEC with ErrConflict.
func (s *Store) Update(
	ctx context.Context,
	now time.Time,
	fn func(ctx context.Context, tx ports.PollTx) error,
) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		staged := &redisTx{store: s, tx: rtx, now: now.UTC(), voters: make(map[string]string)}
		if err := fn(ctx, staged); err != nil {
			return err
		}
		return staged.commit(ctx)
	}, s.pollKey())
	if errors.Is(err, redis.TxFailedErr) {
		return domainerrors.ErrConflict
	}
	return err
}

// ExpiresIn reports the remaining durability window of a key.
func (s *Store) ExpiresIn(ctx context.Context, key entities.StorageKey) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key.Namespaced(s.namespace)).Result()
	if err != nil {
		return 0, s.logError("live_poll_redis_pttl_failed", err, "key", key.Namespaced(s.namespace))
	}
	return ttl, nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRange(ctx, s.outboxPendingKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, s.logError("live_poll_redis_list_pending_outbox_failed", err, "limit", limit)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.outboxHashKey(), ids...).Result()
	if err != nil {
		return nil, s.logError("live_poll_redis_load_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(ids))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var message outboxDocument
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			return nil, s.logError("live_poll_redis_decode_outbox_failed", err, "outbox_id", ids[i])
		}
		items = append(items, message.toMessage())
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, _ time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.outboxPendingKey(), outboxID)
		pipe.HDel(ctx, s.outboxHashKey(), outboxID)
		return nil
	})
	if err != nil {
		return s.logError("live_poll_redis_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if removed.Val() == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// extendedTTL returns the expiry to write so the current one never shrinks.
func (s *Store) extendedTTL(ctx context.Context, reader keyReader, key string) (time.Duration, error) {
	current, err := reader.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if current > s.horizon {
		return current, nil
	}
	return s.horizon, nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "polling/live-poll",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("live poll redis operation failed", fields...)
	return err
}

type outboxDocument struct {
	OutboxID     string    `json:"outbox_id"`
	EventType    string    `json:"event_type"`
	PartitionKey string    `json:"partition_key"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d outboxDocument) toMessage() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     d.OutboxID,
		EventType:    d.EventType,
		PartitionKey: d.PartitionKey,
		Payload:      d.Payload,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// redisTx reads through the watched connection and queues writes until
// commit.
type redisTx struct {
	store  *Store
	tx     *redis.Tx
	now    time.Time
	poll   *entities.Poll
	voters map[string]string
	outbox []outboxDocument
}

func (t *redisTx) LoadPoll(ctx context.Context) (entities.Poll, error) {
	if t.poll != nil {
		return t.poll.Clone(), nil
	}
	return t.store.loadPoll(ctx, t.tx)
}

func (t *redisTx) SavePoll(ctx context.Context, poll entities.Poll) error {
	current, err := t.LoadPoll(ctx)
	if err != nil {
		return err
	}
	if current.PollID != poll.PollID || current.Version+1 != poll.Version {
		return domainerrors.ErrConflict
	}
	staged := poll.Clone()
	t.poll = &staged
	return nil
}

func (t *redisTx) HasVoted(ctx context.Context, pollID string, identity string) (bool, error) {
	key := t.store.voterKey(pollID, identity)
	if _, ok := t.voters[key]; ok {
		return true, nil
	}
	if err := t.tx.Watch(ctx, key).Err(); err != nil {
		return false, t.store.logError("live_poll_redis_watch_voter_failed", err, "poll_id", pollID, "voter", identity)
	}
	count, err := t.tx.Exists(ctx, key).Result()
	if err != nil {
		return false, t.store.logError("live_poll_redis_has_voted_failed", err, "poll_id", pollID, "voter", identity)
	}
	return count > 0, nil
}

func (t *redisTx) MarkVoted(ctx context.Context, pollID string, identity string) error {
	voted, err := t.HasVoted(ctx, pollID, identity)
	if err != nil {
		return err
	}
	if voted {
		return domainerrors.ErrAlreadyVoted
	}
	t.voters[t.store.voterKey(pollID, identity)] = pollID
	return nil
}

func (t *redisTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return t.store.logError("live_poll_redis_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = t.now
	}
	t.outbox = append(t.outbox, outboxDocument{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    createdAt,
	})
	return nil
}

func (t *redisTx) commit(ctx context.Context) error {
	s := t.store
	var pollPayload []byte
	var pollTTL time.Duration
	if t.poll != nil {
		payload, err := json.Marshal(documentFromPoll(*t.poll))
		if err != nil {
			return s.logError("live_poll_redis_encode_poll_failed", err, "poll_id", t.poll.PollID)
		}
		ttl, err := s.extendedTTL(ctx, t.tx, s.pollKey())
		if err != nil {
			return s.logError("live_poll_redis_poll_ttl_failed", err, "poll_id", t.poll.PollID)
		}
		pollPayload, pollTTL = payload, ttl
	}
	voterTTLs := make(map[string]time.Duration, len(t.voters))
	for key, pollID := range t.voters {
		ttl, err := t.markerTTL(ctx, key, pollID, pollTTL)
		if err != nil {
			return s.logError("live_poll_redis_voter_ttl_failed", err, "key", key)
		}
		voterTTLs[key] = ttl
	}
	outboxRows := make(map[string][]byte, len(t.outbox))
	for _, row := range t.outbox {
		raw, err := json.Marshal(row)
		if err != nil {
			return s.logError("live_poll_redis_encode_outbox_failed", err, "outbox_id", row.OutboxID)
		}
		outboxRows[row.OutboxID] = raw
	}
	var firstSeq int64
	if len(t.outbox) > 0 {
		last, err := t.tx.IncrBy(ctx, s.outboxSeqKey(), int64(len(t.outbox))).Result()
		if err != nil {
			return s.logError("live_poll_redis_outbox_seq_failed", err)
		}
		firstSeq = last - int64(len(t.outbox)) + 1
	}

	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if pollPayload != nil {
			pipe.Set(ctx, s.pollKey(), pollPayload, pollTTL)
		}
		for key, ttl := range voterTTLs {
			pipe.Set(ctx, key, t.now.Unix(), ttl)
		}
		for i, row := range t.outbox {
			pipe.HSetNX(ctx, s.outboxHashKey(), row.OutboxID, outboxRows[row.OutboxID])
			pipe.ZAddNX(ctx, s.outboxPendingKey(), &redis.Z{
				Score:  float64(firstSeq + int64(i)),
				Member: row.OutboxID,
			})
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("commit live poll transaction: %w", err)
	}
	return err
}

// markerTTL keeps a voter key alive at least as long as its poll key and past
// the last instant the poll accepts votes.
func (t *redisTx) markerTTL(ctx context.Context, key string, pollID string, pollTTL time.Duration) (time.Duration, error) {
	ttl, err := t.store.extendedTTL(ctx, t.tx, key)
	if err != nil {
		return 0, err
	}
	poll, err := t.LoadPoll(ctx)
	if errors.Is(err, domainerrors.ErrPollNotFound) {
		return ttl, nil
	}
	if err != nil {
		return 0, err
	}
	if poll.PollID != pollID {
		return ttl, nil
	}
	if byDeadline := poll.MarkerExpiry(t.now, t.store.horizon).Sub(t.now); byDeadline > ttl {
		ttl = byDeadline
	}
	if pollTTL > ttl {
		ttl = pollTTL
	}
	return ttl, nil
}

var _ ports.PollStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)

package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/ports"

	"github.com/google/uuid"
)

type pollRecord struct {
	poll      entities.Poll
	expiresAt time.Time
}

type voterRecord struct {
	pollID    string
	expiresAt time.Time
}

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  uint64
	published bool
}

// Store is the single-process PollStore. One mutex serializes every atomic
// unit, which is the host model the vote rules assume.
type Store struct {
	mu sync.RWMutex

	horizon time.Duration
	poll    *pollRecord
	voters  map[string]voterRecord
	outbox  map[string]outboxRecord
	seq     uint64
}

func NewStore(horizon time.Duration) *Store {
	if horizon <= 0 {
		horizon = ports.DefaultDurabilityHorizon
	}
	return &Store{
		horizon: horizon,
		voters:  make(map[string]voterRecord),
		outbox:  make(map[string]outboxRecord),
	}
}

func (s *Store) Initialize(_ context.Context, poll entities.Poll, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &pollRecord{poll: poll.Clone(), expiresAt: now.UTC().Add(s.horizon)}
	if s.poll != nil && s.poll.expiresAt.After(record.expiresAt) {
		record.expiresAt = s.poll.expiresAt
	}
	s.poll = record
	return nil
}

func (s *Store) LoadPoll(_ context.Context, now time.Time) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(now)
}

func (s *Store) loadLocked(now time.Time) (entities.Poll, error) {
	if s.poll == nil || !s.poll.expiresAt.After(now.UTC()) {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return s.poll.poll.Clone(), nil
}

func (s *Store) Update(
	ctx context.Context,
	now time.Time,
	fn func(ctx context.Context, tx ports.PollTx) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, now: now.UTC(), voters: make(map[string]string)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// ExpiresAt reports the current durability deadline of a key.
func (s *Store) ExpiresAt(key entities.StorageKey) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch key.Kind() {
	case entities.KeyKindPoll:
		if s.poll == nil {
			return time.Time{}, false
		}
		return s.poll.expiresAt, true
	case entities.KeyKindVoter:
		record, ok := s.voters[key.String()]
		return record.expiresAt, ok
	default:
		return time.Time{}, false
	}
}

func (s *Store) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now = now.UTC()
	if s.poll != nil && !s.poll.expiresAt.After(now) {
		s.poll = nil
		removed++
	}
	livePollID := ""
	if s.poll != nil {
		livePollID = s.poll.poll.PollID
	}
	for key, record := range s.voters {
		if record.pollID == livePollID || record.expiresAt.After(now) {
			continue
		}
		delete(s.voters, key)
		removed++
	}
	return removed, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// extendVoterLocked writes a marker that lasts at least until the poll it
// belongs to stops accepting votes.
func (s *Store) extendVoterLocked(key string, pollID string, poll *entities.Poll, now time.Time) {
	expiresAt := now.Add(s.horizon)
	if poll != nil && poll.PollID == pollID {
		expiresAt = poll.MarkerExpiry(now, s.horizon)
	}
	if current, ok := s.voters[key]; ok && current.expiresAt.After(expiresAt) {
		expiresAt = current.expiresAt
	}
	s.voters[key] = voterRecord{pollID: pollID, expiresAt: expiresAt}
}

// memoryTx stages writes and applies them only after fn succeeded.
type memoryTx struct {
	store  *Store
	now    time.Time
	poll   *entities.Poll
	// voters maps a staged marker key to its poll id.
	voters map[string]string
	outbox []ports.OutboxMessage
}

func (tx *memoryTx) LoadPoll(_ context.Context) (entities.Poll, error) {
	if tx.poll != nil {
		return tx.poll.Clone(), nil
	}
	return tx.store.loadLocked(tx.now)
}

// SavePoll expects poll.Version to be the stored version plus one.
func (tx *memoryTx) SavePoll(ctx context.Context, poll entities.Poll) error {
	current, err := tx.LoadPoll(ctx)
	if err != nil {
		return err
	}
	if current.PollID != poll.PollID || current.Version+1 != poll.Version {
		return domainerrors.ErrConflict
	}
	staged := poll.Clone()
	tx.poll = &staged
	return nil
}

// HasVoted ignores marker expiry: markers are scoped by poll id and the sweeper
// never reclaims those of the live poll.
func (tx *memoryTx) HasVoted(_ context.Context, pollID string, identity string) (bool, error) {
	key := entities.VoterKey(pollID, identity).String()
	if _, ok := tx.voters[key]; ok {
		return true, nil
	}
	_, ok := tx.store.voters[key]
	return ok, nil
}

func (tx *memoryTx) MarkVoted(ctx context.Context, pollID string, identity string) error {
	voted, err := tx.HasVoted(ctx, pollID, identity)
	if err != nil {
		return err
	}
	if voted {
		return domainerrors.ErrAlreadyVoted
	}
	tx.voters[entities.VoterKey(pollID, identity).String()] = pollID
	return nil
}

func (tx *memoryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := tx.store.outbox[outboxID]; ok && !bytes.Equal(existing.message.Payload, payload) {
		return domainerrors.ErrConflict
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = tx.now
	}
	tx.outbox = append(tx.outbox, ports.OutboxMessage{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    createdAt,
	})
	return nil
}

func (tx *memoryTx) apply() {
	s := tx.store
	if tx.poll != nil {
		expiresAt := tx.now.Add(s.horizon)
		if s.poll != nil && s.poll.expiresAt.After(expiresAt) {
			expiresAt = s.poll.expiresAt
		}
		s.poll = &pollRecord{poll: *tx.poll, expiresAt: expiresAt}
	}
	var current *entities.Poll
	if s.poll != nil {
		current = &s.poll.poll
	}
	for key, pollID := range tx.voters {
		s.extendVoterLocked(key, pollID, current, tx.now)
	}
	for _, message := range tx.outbox {
		if _, ok := s.outbox[message.OutboxID]; ok {
			continue
		}
		s.seq++
		s.outbox[message.OutboxID] = outboxRecord{message: message, sequence: s.seq}
	}
}

var _ ports.PollStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.ExpirySweeper = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)

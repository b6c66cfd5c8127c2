package postgresadapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"livepoll/contexts/polling/live-poll/domain/entities"
)

type pollModel struct {
	Key       string    `gorm:"column:poll_key;primaryKey"`
	PollID    string    `gorm:"column:poll_id;not null"`
	Question  string    `gorm:"column:question;not null"`
	Options   []byte    `gorm:"column:options;type:jsonb;not null"`
	Deadline  int64     `gorm:"column:deadline;not null"`
	Tally     []byte    `gorm:"column:tally;type:jsonb;not null"`
	Version   int64     `gorm:"column:version;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "live_polls"
}

type voterModel struct {
	PollID    string    `gorm:"column:poll_id;primaryKey"`
	Identity  string    `gorm:"column:identity;primaryKey"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voterModel) TableName() string {
	return "live_poll_voters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "live_poll_outbox"
}

func pollModelFromEntity(poll entities.Poll, expiresAt time.Time) (pollModel, error) {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return pollModel{}, fmt.Errorf("encode options: %w", err)
	}
	tally, err := encodeTally(poll.Tally)
	if err != nil {
		return pollModel{}, err
	}
	return pollModel{
		Key:       entities.PollKey().String(),
		PollID:    poll.PollID,
		Question:  poll.Question,
		Options:   options,
		Deadline:  int64(poll.Deadline),
		Tally:     tally,
		Version:   int64(poll.Version),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: poll.CreatedAt.UTC(),
		UpdatedAt: poll.UpdatedAt.UTC(),
	}, nil
}

func (m pollModel) toEntity() (entities.Poll, error) {
	var options []string
	if len(m.Options) > 0 {
		if err := json.Unmarshal(m.Options, &options); err != nil {
			return entities.Poll{}, fmt.Errorf("decode options: %w", err)
		}
	}
	tally, err := decodeTally(m.Tally)
	if err != nil {
		return entities.Poll{}, err
	}
	return entities.Poll{
		PollID:    m.PollID,
		Question:  m.Question,
		Options:   options,
		Deadline:  uint64(m.Deadline),
		Tally:     tally,
		Version:   uint64(m.Version),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

// encodeTally writes the tally as a JSON object keyed by decimal option index.
func encodeTally(tally entities.Tally) ([]byte, error) {
	raw := make(map[string]uint32, len(tally))
	for _, key := range entities.SortedTallyKeys(tally) {
		raw[strconv.FormatUint(uint64(key), 10)] = tally[key]
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode tally: %w", err)
	}
	return payload, nil
}

func decodeTally(payload []byte) (entities.Tally, error) {
	tally := entities.Tally{}
	if len(payload) == 0 {
		return tally, nil
	}
	var raw map[string]uint32
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode tally: %w", err)
	}
	for key, count := range raw {
		index, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode tally key %q: %w", key, err)
		}
		tally[uint32(index)] = count
	}
	return tally, nil
}

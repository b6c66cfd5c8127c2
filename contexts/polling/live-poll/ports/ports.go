package ports

import (
	"context"
	"time"

	contractsv1 "livepoll/contracts/gen/events/v1"
	"livepoll/contexts/polling/live-poll/domain/entities"
)

// DefaultDurabilityHorizon is how long a written entry is guaranteed to stay
// available: 17280 ledgers at five seconds each.
const DefaultDurabilityHorizon = 17280 * 5 * time.Second

// PollStore owns the poll record and the voter-marker partition.
type PollStore interface {
	// Initialize replaces any existing poll record and extends its
	// durability window.
	Initialize(ctx context.Context, poll entities.Poll, now time.Time) error
	// LoadPoll returns ErrPollNotFound when no live record exists.
	LoadPoll(ctx context.Context, now time.Time) (entities.Poll, error)
	// Update runs fn as one atomic unit. Writes made through tx either all
	// commit or none do. Implementations return ErrConflict when another
	// writer committed first; callers may retry the whole unit.
	Update(ctx context.Context, now time.Time, fn func(ctx context.Context, tx PollTx) error) error
}

// PollTx is the view of the store inside one atomic unit. SavePoll is a
// compare-and-swap: poll.Version must be exactly one above the stored version.
type PollTx interface {
	LoadPoll(ctx context.Context) (entities.Poll, error)
	SavePoll(ctx context.Context, poll entities.Poll) error
	HasVoted(ctx context.Context, pollID string, identity string) (bool, error)
	MarkVoted(ctx context.Context, pollID string, identity string) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// Credential is what the caller presents to prove an identity.
type Credential struct {
	Identity  string
	Signature string
	PollID    string
	Payload   string
}

// Authenticator is the external authentication collaborator. It returns
// the proven identity or ErrUnauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, credential Credential) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository supports worker relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// ExpirySweeper reclaims entries whose durability window has passed on
// substrates without native expiry.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"livepoll/contexts/polling/live-poll/domain/entities"
	"livepoll/contexts/polling/live-poll/ports"
)

type capturingSubscriber struct {
	topic   string
	group   string
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *capturingSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.topic = topic
	s.group = consumerGroup
	s.handler = handler
	return nil
}

func voteEnvelope(t *testing.T, cast entities.VoteCast) ports.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(cast)
	if err != nil {
		t.Fatalf("marshal cast: %v", err)
	}
	return ports.EventEnvelope{
		EventID:       "evt-1",
		EventType:     entities.EventTypeVote,
		SchemaVersion: 1,
		PartitionKey:  cast.PollID,
		Data:          data,
	}
}

func TestVoteObserverDeliversDecodedVotes(t *testing.T) {
	subscriber := &capturingSubscriber{}
	var seen []entities.VoteCast
	observer := VoteObserver{
		Subscriber: subscriber,
		OnVote: func(_ context.Context, cast entities.VoteCast) error {
			seen = append(seen, cast)
			return nil
		},
	}
	if err := observer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if subscriber.topic != entities.EventTypeVote || subscriber.group == "" {
		t.Fatalf("unexpected subscription %q/%q", subscriber.topic, subscriber.group)
	}

	event := voteEnvelope(t, entities.VoteCast{PollID: "p1", OptionIndex: 2, Voter: "alice"})
	if err := subscriber.handler(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(seen) != 1 || seen[0].OptionIndex != 2 || seen[0].Voter != "alice" {
		t.Fatalf("unexpected observed votes: %#v", seen)
	}
}

func TestVoteObserverDropsInvalidEnvelopes(t *testing.T) {
	subscriber := &capturingSubscriber{}
	called := false
	observer := VoteObserver{
		Subscriber: subscriber,
		OnVote: func(context.Context, entities.VoteCast) error {
			called = true
			return nil
		},
	}
	if err := observer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := subscriber.handler(context.Background(), ports.EventEnvelope{EventType: entities.EventTypeVote}); err != nil {
		t.Fatalf("invalid envelope should be dropped, got %v", err)
	}
	bad := voteEnvelope(t, entities.VoteCast{PollID: "p1"})
	bad.Data = json.RawMessage(`"not an object"`)
	if err := subscriber.handler(context.Background(), bad); err != nil {
		t.Fatalf("undecodable payload should be dropped, got %v", err)
	}
	if called {
		t.Fatalf("OnVote must not run for rejected events")
	}
}

func TestVoteObserverPropagatesHandlerFailure(t *testing.T) {
	subscriber := &capturingSubscriber{}
	boom := errors.New("downstream unavailable")
	observer := VoteObserver{
		Subscriber: subscriber,
		OnVote:     func(context.Context, entities.VoteCast) error { return boom },
	}
	if err := observer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := subscriber.handler(context.Background(), voteEnvelope(t, entities.VoteCast{PollID: "p1", Voter: "bob"}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestVoteObserverWithoutSubscriberIsNoop(t *testing.T) {
	if err := (VoteObserver{}).Start(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	application "livepoll/contexts/polling/live-poll/application"
	"livepoll/contexts/polling/live-poll/domain/entities"
	"livepoll/contexts/polling/live-poll/ports"
)

// VoteObserver consumes vote notifications from the event bus. OnVote, when
// set, receives every decoded event; an error from it is returned to the bus
// so the delivery can be retried.
type VoteObserver struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	OnVote        func(context.Context, entities.VoteCast) error
	Logger        *slog.Logger
}

func (o VoteObserver) Start(ctx context.Context) error {
	if o.Subscriber == nil {
		return nil
	}
	group := o.ConsumerGroup
	if group == "" {
		group = "live-poll-vote-observer"
	}
	return o.Subscriber.Subscribe(ctx, entities.EventTypeVote, group, o.handle)
}

func (o VoteObserver) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.LayerLogger(o.Logger, "worker")
	if err := event.Validate(); err != nil {
		logger.Warn("vote event rejected",
			"event", "live_poll_vote_event_invalid",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return nil
	}
	var cast entities.VoteCast
	if err := json.Unmarshal(event.Data, &cast); err != nil {
		logger.Warn("vote event payload undecodable",
			"event", "live_poll_vote_event_decode_failed",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return nil
	}

	logger.Info("vote observed",
		"event", "live_poll_vote_observed",
		"event_id", event.EventID,
		"poll_id", cast.PollID,
		"option_index", cast.OptionIndex,
		"voter", cast.Voter,
	)
	if o.OnVote == nil {
		return nil
	}
	if err := o.OnVote(ctx, cast); err != nil {
		return fmt.Errorf("handle vote event %s: %w", event.EventID, err)
	}
	return nil
}

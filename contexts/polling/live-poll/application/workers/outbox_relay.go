package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "livepoll/contexts/polling/live-poll/application"
	"livepoll/contexts/polling/live-poll/ports"
)

// OutboxRelay publishes committed vote events to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	// Topic overrides the envelope event type as routing key when set.
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after Publish returned nil. It stops on the first failure
// so the next cycle picks up the remaining rows; observers must tolerate a
// redelivered event.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.LayerLogger(r.Logger, "worker")
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("live poll outbox list failed",
			"event", "live_poll_outbox_list_failed",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("live poll outbox relay found no pending rows",
			"event", "live_poll_outbox_relay_noop",
			"batch_size", limit,
		)
		return 0, nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("live poll outbox decode failed",
				"event", "live_poll_outbox_decode_failed",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		topic := r.Topic
		if topic == "" {
			topic = event.EventType
		}
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("live poll outbox publish failed",
				"event", "live_poll_outbox_publish_failed",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("live poll outbox mark published failed",
				"event", "live_poll_outbox_mark_published_failed",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	logger.Info("live poll outbox relay cycle completed",
		"event", "live_poll_outbox_relay_completed",
		"published_count", published,
	)
	return published, nil
}

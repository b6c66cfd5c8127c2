package commands

import (
	"encoding/json"

	contractsv1 "livepoll/contracts/gen/events/v1"
	"livepoll/contexts/polling/live-poll/domain/entities"
	"livepoll/contexts/polling/live-poll/ports"
)

// newVoteEnvelope wraps a vote notification. Events are partitioned by poll
// so observers see votes of one poll in commit order.
func newVoteEnvelope(eventID string, cast entities.VoteCast) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(cast)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        entities.EventTypeVote,
		OccurredAt:       cast.OccurredAt.UTC(),
		SourceService:    "live-poll",
		TraceID:          eventID,
		SchemaVersion:    contractsv1.CurrentSchemaVersion,
		PartitionKeyPath: "poll_id",
		PartitionKey:     cast.PollID,
		Data:             payload,
	}, nil
}

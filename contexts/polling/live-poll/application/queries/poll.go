package queries

import (
	"context"
	"time"

	"livepoll/contexts/polling/live-poll/domain/entities"
	"livepoll/contexts/polling/live-poll/ports"
)

// PollQueryUseCase serves the read-only projection of the current poll.
type PollQueryUseCase struct {
	Polls ports.PollStore
	Clock ports.Clock
}

func (uc PollQueryUseCase) GetPoll(ctx context.Context) (entities.PollResults, error) {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	poll, err := uc.Polls.LoadPoll(ctx, now)
	if err != nil {
		return entities.PollResults{}, err
	}
	return poll.Results(entities.LedgerTime(now)), nil
}

package httpadapter

import (
	"context"
	"log/slog"

	"livepoll/contexts/polling/live-poll/application/commands"
	"livepoll/contexts/polling/live-poll/application/queries"
	"livepoll/contexts/polling/live-poll/domain/entities"
	"livepoll/contexts/polling/live-poll/ports"
	httptransport "livepoll/contexts/polling/live-poll/transport/http"
)

type Handler struct {
	Init   commands.InitPollUseCase
	Votes  commands.VoteUseCase
	Polls  queries.PollQueryUseCase
	Logger *slog.Logger
}

func (h Handler) InitPollHandler(
	ctx context.Context,
	actorID string,
	req httptransport.InitPollRequest,
) (httptransport.PollResponse, error) {
	poll, err := h.Init.InitPoll(ctx, commands.InitPollCommand{
		ActorID:  actorID,
		Question: req.Question,
		Options:  req.Options,
		Deadline: req.Deadline,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapResults(poll.Results(entities.LedgerTime(poll.CreatedAt))), nil
}

func (h Handler) VoteHandler(
	ctx context.Context,
	identity string,
	req httptransport.VoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.Vote(ctx, commands.VoteCommand{
		Credential: ports.Credential{
			Identity:  identity,
			Signature: req.Signature,
			PollID:    req.PollID,
		},
		OptionIndex: req.OptionIndex,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		PollID:      result.Poll.PollID,
		Voter:       result.Voter,
		OptionIndex: result.OptionIndex,
		OptionVotes: result.Poll.Tally.Count(result.OptionIndex),
		TotalVotes:  result.Poll.Tally.Total(),
		EventID:     result.EventID,
	}, nil
}

func (h Handler) GetPollHandler(ctx context.Context) (httptransport.PollResponse, error) {
	results, err := h.Polls.GetPoll(ctx)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapResults(results), nil
}

func mapResults(results entities.PollResults) httptransport.PollResponse {
	options := make([]httptransport.OptionResponse, 0, len(results.Options))
	for _, option := range results.Options {
		options = append(options, httptransport.OptionResponse{
			Index: option.Index,
			Label: option.Label,
			Votes: option.Votes,
			Share: option.Share,
		})
	}
	tally := make(map[uint32]uint32, len(results.Poll.Tally))
	for _, key := range entities.SortedTallyKeys(results.Poll.Tally) {
		if count := results.Poll.Tally[key]; count > 0 {
			tally[key] = count
		}
	}
	return httptransport.PollResponse{
		PollID:     results.Poll.PollID,
		Question:   results.Poll.Question,
		Options:    options,
		Deadline:   results.Poll.Deadline,
		Tally:      tally,
		TotalVotes: results.TotalVotes,
		Open:       results.Open,
		Version:    results.Poll.Version,
	}
}

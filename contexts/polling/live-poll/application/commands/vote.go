package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "livepoll/contexts/polling/live-poll/application"
	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/domain/services"
	"livepoll/contexts/polling/live-poll/ports"
)

const defaultMaxAttempts = 5

// VoteCommand is one ballot. Credential.PollID, when set, pins the ballot to
// the poll generation the voter signed for.
type VoteCommand struct {
	Credential  ports.Credential
	OptionIndex uint32
}

type VoteResult struct {
	Poll        entities.Poll
	Voter       string
	OptionIndex uint32
	EventID     string
	Attempts    int
}

// VoteUseCase runs authenticate, load, has_voted, decide and commit. The
// read-decide-write part executes inside PollStore.Update and is retried as a
// whole when the store reports a lost compare-and-swap.
type VoteUseCase struct {
	Polls       ports.PollStore
	Auth        ports.Authenticator
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	MaxAttempts int
	Logger      *slog.Logger
}

func (uc VoteUseCase) Vote(ctx context.Context, cmd VoteCommand) (VoteResult, error) {
	logger := application.LayerLogger(uc.Logger, "application")
	claimed := strings.TrimSpace(cmd.Credential.Identity)
	logger.Info("vote processing started",
		"event", "live_poll_vote_started",
		"voter", claimed,
		"option_index", cmd.OptionIndex,
	)

	identity, err := uc.authenticate(ctx, cmd)
	if err != nil {
		logger.Warn("vote authentication failed",
			"event", "live_poll_vote_unauthenticated",
			"voter", claimed,
			"error", err.Error(),
		)
		return VoteResult{}, err
	}

	maxAttempts := uc.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var result VoteResult
	for attempt := 1; ; attempt++ {
		now := uc.now()
		result, err = uc.commit(ctx, now, identity, cmd)
		if err == nil {
			result.Attempts = attempt
			break
		}
		if errors.Is(err, domainerrors.ErrConflict) && attempt < maxAttempts {
			logger.Debug("vote commit lost a concurrent update; retrying",
				"event", "live_poll_vote_conflict_retry",
				"voter", identity,
				"attempt", attempt,
			)
			continue
		}
		uc.logRejection(logger, identity, cmd.OptionIndex, attempt, err)
		return VoteResult{}, err
	}

	logger.Info("vote recorded",
		"event", "live_poll_vote_recorded",
		"poll_id", result.Poll.PollID,
		"voter", result.Voter,
		"option_index", result.OptionIndex,
		"option_votes", result.Poll.Tally.Count(result.OptionIndex),
		"total_votes", result.Poll.Tally.Total(),
		"event_id", result.EventID,
		"attempts", result.Attempts,
	)
	return result, nil
}

func (uc VoteUseCase) authenticate(ctx context.Context, cmd VoteCommand) (string, error) {
	if uc.Auth == nil {
		return "", domainerrors.ErrUnauthenticated
	}
	credential := cmd.Credential
	credential.Identity = strings.TrimSpace(credential.Identity)
	credential.PollID = strings.TrimSpace(credential.PollID)
	credential.Payload = entities.VotePayload(credential.PollID, cmd.OptionIndex)
	identity, err := uc.Auth.Authenticate(ctx, credential)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(identity) == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	return identity, nil
}

func (uc VoteUseCase) commit(
	ctx context.Context,
	now time.Time,
	identity string,
	cmd VoteCommand,
) (VoteResult, error) {
	var result VoteResult
	pinnedPollID := strings.TrimSpace(cmd.Credential.PollID)

	err := uc.Polls.Update(ctx, now, func(ctx context.Context, tx ports.PollTx) error {
		poll, err := tx.LoadPoll(ctx)
		if err != nil {
			return err
		}
		if pinnedPollID != "" && pinnedPollID != poll.PollID {
			return domainerrors.ErrUnauthenticated
		}
		voted, err := tx.HasVoted(ctx, poll.PollID, identity)
		if err != nil {
			return err
		}
		updated, err := services.Decide(poll, entities.LedgerTime(now), identity, cmd.OptionIndex, voted)
		if err != nil {
			return err
		}
		updated.Version = poll.Version + 1
		updated.UpdatedAt = now

		if err := tx.SavePoll(ctx, updated); err != nil {
			return err
		}
		if err := tx.MarkVoted(ctx, updated.PollID, identity); err != nil {
			return err
		}
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newVoteEnvelope(eventID, entities.VoteCast{
			PollID:      updated.PollID,
			OptionIndex: cmd.OptionIndex,
			Voter:       identity,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}

		result = VoteResult{
			Poll:        updated,
			Voter:       identity,
			OptionIndex: cmd.OptionIndex,
			EventID:     eventID,
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

func (uc VoteUseCase) logRejection(logger *slog.Logger, identity string, optionIndex uint32, attempt int, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrPollNotFound),
		errors.Is(err, domainerrors.ErrPollEnded),
		errors.Is(err, domainerrors.ErrAlreadyVoted),
		errors.Is(err, domainerrors.ErrInvalidOption),
		errors.Is(err, domainerrors.ErrUnauthenticated):
		logger.Warn("vote rejected",
			"event", "live_poll_vote_rejected",
			"voter", identity,
			"option_index", optionIndex,
			"error_code", domainerrors.Code(err),
			"error", err.Error(),
		)
	default:
		logger.Error("vote commit failed",
			"event", "live_poll_vote_commit_failed",
			"voter", identity,
			"option_index", optionIndex,
			"attempts", attempt,
			"error", err.Error(),
		)
	}
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

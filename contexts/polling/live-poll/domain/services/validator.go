package services

import (
	"strings"

	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
)

// Decide is the vote validator. It runs the gates in a fixed order and
// returns the poll with the updated tally only when every gate passes; the
// input poll is never mutated.
//
// identity must already have been proven by the authentication collaborator.
// An empty identity means that step did not happen.
func Decide(
	poll entities.Poll,
	now uint64,
	identity string,
	optionIndex uint32,
	alreadyVoted bool,
) (entities.Poll, error) {
	if strings.TrimSpace(identity) == "" {
		return entities.Poll{}, domainerrors.ErrUnauthenticated
	}
	if !poll.IsOpen(now) {
		return entities.Poll{}, domainerrors.ErrPollEnded
	}
	if alreadyVoted {
		return entities.Poll{}, domainerrors.ErrAlreadyVoted
	}
	if !poll.HasOption(optionIndex) {
		return entities.Poll{}, domainerrors.ErrInvalidOption
	}

	next := poll.Clone()
	next.Tally = poll.Tally.Increment(optionIndex)
	return next, nil
}

// ValidateInit checks a new poll definition. A poll without options can never
// accept a vote, so it is rejected up front.
func ValidateInit(options []string) error {
	if len(options) == 0 {
		return domainerrors.ErrInvalidPollInput
	}
	return nil
}

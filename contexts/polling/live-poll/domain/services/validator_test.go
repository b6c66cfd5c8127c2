package services

import (
	"errors"
	"testing"

	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
)

func openPoll() entities.Poll {
	return entities.Poll{
		PollID:   "p1",
		Options:  []string{"a", "b"},
		Deadline: 100,
		Tally:    entities.Tally{1: 2},
		Version:  3,
	}
}

func TestDecideAcceptsAtDeadline(t *testing.T) {
	poll := openPoll()
	next, err := Decide(poll, 100, "alice", 1, false)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if next.Tally.Count(1) != 3 || next.Tally.Total() != poll.Tally.Total()+1 {
		t.Fatalf("expected exactly one added vote: %#v", next.Tally)
	}
	if poll.Tally.Count(1) != 2 {
		t.Fatalf("input poll mutated: %#v", poll.Tally)
	}
}

func TestDecideGateOrder(t *testing.T) {
	cases := []struct {
		name    string
		now     uint64
		id      string
		option  uint32
		voted   bool
		wantErr error
	}{
		{name: "unauthenticated first", now: 500, id: " ", option: 9, voted: true, wantErr: domainerrors.ErrUnauthenticated},
		{name: "ended before already voted", now: 101, id: "a", option: 9, voted: true, wantErr: domainerrors.ErrPollEnded},
		{name: "already voted before option", now: 1, id: "a", option: 9, voted: true, wantErr: domainerrors.ErrAlreadyVoted},
		{name: "invalid option", now: 1, id: "a", option: 2, voted: false, wantErr: domainerrors.ErrInvalidOption},
	}
	for _, tc := range cases {
		_, err := Decide(openPoll(), tc.now, tc.id, tc.option, tc.voted)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestValidateInitRejectsEmptyOptions(t *testing.T) {
	if err := ValidateInit(nil); !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected ErrInvalidPollInput, got %v", err)
	}
	if err := ValidateInit([]string{"only"}); err != nil {
		t.Fatalf("single option must be accepted: %v", err)
	}
}

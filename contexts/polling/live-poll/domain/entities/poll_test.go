package entities

import (
	"testing"
	"time"
)

func TestDeadlineIsInclusive(t *testing.T) {
	poll := Poll{Deadline: 100}
	if !poll.IsOpen(99) || !poll.IsOpen(100) {
		t.Fatalf("expected poll open up to and including the deadline")
	}
	if poll.IsOpen(101) {
		t.Fatalf("expected poll closed one second after the deadline")
	}
}

func TestHasOptionBounds(t *testing.T) {
	poll := Poll{Options: []string{"a", "b", "c"}}
	if !poll.HasOption(0) || !poll.HasOption(2) {
		t.Fatalf("expected in-range options to be valid")
	}
	if poll.HasOption(3) || poll.HasOption(^uint32(0)) {
		t.Fatalf("expected out-of-range options to be invalid")
	}
	if (Poll{}).HasOption(0) {
		t.Fatalf("a poll without options accepts no option")
	}
}

func TestTallyIncrementDoesNotMutateReceiver(t *testing.T) {
	original := Tally{1: 2}
	next := original.Increment(1).Increment(4)
	if original.Count(1) != 2 || original.Count(4) != 0 {
		t.Fatalf("receiver mutated: %#v", original)
	}
	if next.Count(1) != 3 || next.Count(4) != 1 || next.Total() != 4 {
		t.Fatalf("unexpected incremented tally: %#v", next)
	}
}

func TestCloneIsDeep(t *testing.T) {
	poll := Poll{Options: []string{"x"}, Tally: Tally{0: 1}}
	clone := poll.Clone()
	clone.Options[0] = "y"
	clone.Tally[0] = 9
	if poll.Options[0] != "x" || poll.Tally[0] != 1 {
		t.Fatalf("clone shares storage with original")
	}
}

func TestResultsProjection(t *testing.T) {
	poll := Poll{
		PollID:   "p",
		Options:  []string{"red", "green", "blue"},
		Deadline: 50,
		Tally:    Tally{0: 3, 2: 1},
	}
	results := poll.Results(60)
	if results.Open {
		t.Fatalf("expected closed poll after deadline")
	}
	if results.TotalVotes != 4 || len(results.Options) != 3 {
		t.Fatalf("unexpected totals: %#v", results)
	}
	if results.Options[1].Votes != 0 || results.Options[1].Share != 0 {
		t.Fatalf("expected zero row for option without votes: %#v", results.Options[1])
	}
	if results.Options[0].Share != 0.75 || results.Options[2].Label != "blue" {
		t.Fatalf("unexpected option rows: %#v", results.Options)
	}

	empty := Poll{Options: []string{"a"}}.Results(0)
	if empty.TotalVotes != 0 || empty.Options[0].Share != 0 {
		t.Fatalf("expected zero shares when nobody voted: %#v", empty)
	}
}

func TestVotePayloadBindsPollAndOption(t *testing.T) {
	if got := VotePayload("abc", 7); got != "livepoll:vote:abc:7" {
		t.Fatalf("unexpected payload %q", got)
	}
	if VotePayload("abc", 1) == VotePayload("abd", 1) {
		t.Fatalf("payload must differ per poll")
	}
}

func TestMarkerExpiryOutlivesDeadline(t *testing.T) {
	poll := Poll{Deadline: 10_000}
	now := time.Unix(100, 0)
	if got := poll.MarkerExpiry(now, time.Hour); !got.Equal(time.Unix(10_000, 0).Add(time.Hour)) {
		t.Fatalf("expected deadline plus horizon, got %s", got)
	}
	late := time.Unix(20_000, 0)
	if got := poll.MarkerExpiry(late, time.Hour); !got.Equal(late.Add(time.Hour)) {
		t.Fatalf("expected now plus horizon after deadline, got %s", got)
	}
	huge := Poll{Deadline: ^uint64(0)}
	if got := huge.DeadlineTime(); got.Year() != 9999 {
		t.Fatalf("expected clamped deadline, got %s", got)
	}
}

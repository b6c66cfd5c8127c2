package entities

import (
	"sort"
	"strconv"
	"time"
)

// Tally maps an option index to its accumulated vote count. Options that have
// never received a vote have no key.
type Tally map[uint32]uint32

func (t Tally) Count(optionIndex uint32) uint32 {
	return t[optionIndex]
}

func (t Tally) Total() uint64 {
	var total uint64
	for _, count := range t {
		total += uint64(count)
	}
	return total
}

// Increment returns a copy of the tally with one more vote for optionIndex.
// The receiver is never mutated.
func (t Tally) Increment(optionIndex uint32) Tally {
	next := t.Clone()
	next[optionIndex]++
	return next
}

func (t Tally) Clone() Tally {
	next := make(Tally, len(t)+1)
	for key, value := range t {
		next[key] = value
	}
	return next
}

// Poll is the singleton poll record. PollID changes on every initialization
// so voter markers written for an earlier poll never match the current one.
type Poll struct {
	PollID    string
	Question  string
	Options   []string
	Deadline  uint64
	Tally     Tally
	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether a vote at ledger time now is still permitted. The
// deadline itself is inclusive.
func (p Poll) IsOpen(now uint64) bool {
	return now <= p.Deadline
}

func (p Poll) HasOption(optionIndex uint32) bool {
	return uint64(optionIndex) < uint64(len(p.Options))
}

func (p Poll) Clone() Poll {
	clone := p
	clone.Options = append([]string(nil), p.Options...)
	clone.Tally = p.Tally.Clone()
	return clone
}

// OptionResult is one row of the read projection.
type OptionResult struct {
	Index uint32
	Label string
	Votes uint32
	Share float64
}

// PollResults is the read-only projection served by get_poll.
type PollResults struct {
	Poll       Poll
	Options    []OptionResult
	TotalVotes uint64
	Open       bool
}

func (p Poll) Results(now uint64) PollResults {
	total := p.Tally.Total()
	options := make([]OptionResult, 0, len(p.Options))
	for i, label := range p.Options {
		index := uint32(i)
		votes := p.Tally.Count(index)
		share := 0.0
		if total > 0 {
			share = float64(votes) / float64(total)
		}
		options = append(options, OptionResult{
			Index: index,
			Label: label,
			Votes: votes,
			Share: share,
		})
	}
	return PollResults{
		Poll:       p.Clone(),
		Options:    options,
		TotalVotes: total,
		Open:       p.IsOpen(now),
	}
}

// SortedTallyKeys returns tally keys in ascending order for deterministic
// encoding.
func SortedTallyKeys(t Tally) []uint32 {
	keys := make([]uint32, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// maxLedgerSeconds caps deadline conversions at 9999-12-31T23:59:59Z so they
// stay representable as time.Time and as SQL timestamps.
const maxLedgerSeconds = 253402300799

// DeadlineTime is the deadline as a UTC wall-clock instant.
func (p Poll) DeadlineTime() time.Time {
	seconds := p.Deadline
	if seconds > maxLedgerSeconds {
		seconds = maxLedgerSeconds
	}
	return time.Unix(int64(seconds), 0).UTC()
}

// MarkerExpiry is the expiry a voter marker of this poll must carry when it
// is written at now. Markers outlive the last instant the poll accepts votes,
// so an identity can never vote twice in one generation.
func (p Poll) MarkerExpiry(now time.Time, horizon time.Duration) time.Time {
	expiresAt := now.UTC().Add(horizon)
	if byDeadline := p.DeadlineTime().Add(horizon); byDeadline.After(expiresAt) {
		expiresAt = byDeadline
	}
	return expiresAt
}

// LedgerTime converts a wall-clock instant into ledger-clock seconds.
func LedgerTime(now time.Time) uint64 {
	seconds := now.Unix()
	if seconds < 0 {
		return 0
	}
	return uint64(seconds)
}

// EventTypeVote is the notification emitted for every accepted vote.
const EventTypeVote = "vote"

// VoteCast is the payload of the vote notification.
type VoteCast struct {
	PollID      string    `json:"poll_id"`
	OptionIndex uint32    `json:"option_index"`
	Voter       string    `json:"voter"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// VotePayload is the message a voter signs for one ballot. Binding the poll id
// keeps a signature from being replayed against a later poll.
func VotePayload(pollID string, optionIndex uint32) string {
	return "livepoll:vote:" + pollID + ":" + strconv.FormatUint(uint64(optionIndex), 10)
}

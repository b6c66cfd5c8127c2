package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ErrorCode is the numeric ledger error (1..4) when one applies.
	ErrorCode uint32 `json:"error_code,omitempty"`
}

type InitPollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Deadline uint64   `json:"deadline"`
}

type VoteRequest struct {
	OptionIndex uint32 `json:"option_index"`
	Signature   string `json:"signature,omitempty"`
	PollID      string `json:"poll_id,omitempty"`
}

type OptionResponse struct {
	Index uint32  `json:"index"`
	Label string  `json:"label"`
	Votes uint32  `json:"votes"`
	Share float64 `json:"share"`
}

type PollResponse struct {
	PollID     string            `json:"poll_id"`
	Question   string            `json:"question"`
	Options    []OptionResponse  `json:"options"`
	Deadline   uint64            `json:"deadline"`
	Tally      map[uint32]uint32 `json:"tally"`
	TotalVotes uint64            `json:"total_votes"`
	Open       bool              `json:"open"`
	Version    uint64            `json:"version"`
}

type VoteResponse struct {
	PollID      string `json:"poll_id"`
	Voter       string `json:"voter"`
	OptionIndex uint32 `json:"option_index"`
	OptionVotes uint32 `json:"option_votes"`
	TotalVotes  uint64 `json:"total_votes"`
	EventID     string `json:"event_id"`
}

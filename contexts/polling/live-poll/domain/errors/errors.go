package errors

import "errors"

// The first four errors are the only outcomes a caller can get from a vote
// besides success. None of them is retryable without changing input or
// waiting for a new poll.
var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollEnded        = errors.New("poll has ended")
	ErrAlreadyVoted     = errors.New("identity has already voted")
	ErrInvalidOption    = errors.New("invalid option index")
	ErrUnauthenticated  = errors.New("voter identity could not be authenticated")
	ErrInvalidPollInput = errors.New("invalid poll input")
	ErrForbidden        = errors.New("actor may not initialize the poll")
	ErrConflict         = errors.New("poll record changed concurrently")
)

// Code returns the stable numeric code of a poll error, matching the contract
// error enum (1..4). Unknown errors map to 0.
func Code(err error) uint32 {
	switch {
	case errors.Is(err, ErrPollNotFound):
		return 1
	case errors.Is(err, ErrPollEnded):
		return 2
	case errors.Is(err, ErrAlreadyVoted):
		return 3
	case errors.Is(err, ErrInvalidOption):
		return 4
	default:
		return 0
	}
}

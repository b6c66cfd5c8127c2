package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	pollhttp "livepoll/contexts/polling/live-poll/transport/http"
)

// handleInitPoll godoc
// @Summary Initialize the poll
// @Description Creates or replaces the single poll. The tally starts empty.
// @Tags poll
// @Accept json
// @Produce json
// @Param X-User-Id header string false "Actor id, checked against POLL_ADMINS when configured"
// @Param request body pollhttp.InitPollRequest true "Poll definition"
// @Success 201 {object} pollhttp.PollResponse
// @Failure 400 {object} pollhttp.ErrorResponse
// @Failure 403 {object} pollhttp.ErrorResponse
// @Router /api/poll/v1/poll [post]
func (s *Server) handleInitPoll(w http.ResponseWriter, r *http.Request) {
	var req pollhttp.InitPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.poll.Handler.InitPollHandler(r.Context(), strings.TrimSpace(r.Header.Get("X-User-Id")), req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleGetPoll godoc
// @Summary Read the poll
// @Tags poll
// @Produce json
// @Success 200 {object} pollhttp.PollResponse
// @Failure 404 {object} pollhttp.ErrorResponse
// @Router /api/poll/v1/poll [get]
func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.poll.Handler.GetPollHandler(r.Context())
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVote godoc
// @Summary Cast a vote
// @Description One vote per identity per poll. The identity is X-Voter-Id (hex ed25519 key) in ed25519 mode, or X-User-Id from a trusted gateway in header mode.
// @Tags poll
// @Accept json
// @Produce json
// @Param X-Voter-Id header string false "Voter public key (ed25519 mode)"
// @Param X-User-Id header string false "Gateway identity (header mode)"
// @Param X-Voter-Signature header string false "Signature over livepoll:vote:<poll_id>:<option_index>"
// @Param request body pollhttp.VoteRequest true "Ballot"
// @Success 200 {object} pollhttp.VoteResponse
// @Failure 401 {object} pollhttp.ErrorResponse
// @Failure 404 {object} pollhttp.ErrorResponse
// @Failure 409 {object} pollhttp.ErrorResponse
// @Failure 410 {object} pollhttp.ErrorResponse
// @Failure 422 {object} pollhttp.ErrorResponse
// @Router /api/poll/v1/poll/votes [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req pollhttp.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	identity := strings.TrimSpace(r.Header.Get(s.voterHeader))
	if identity == "" {
		writePollError(w, http.StatusUnauthorized, "missing_voter", s.voterHeader+" header is required")
		return
	}
	if req.Signature == "" {
		req.Signature = strings.TrimSpace(r.Header.Get("X-Voter-Signature"))
	}

	resp, err := s.poll.Handler.VoteHandler(r.Context(), identity, req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrUnauthenticated):
		writeLedgerError(w, http.StatusUnauthorized, "unauthenticated", err)
	case errors.Is(err, domainerrors.ErrPollNotFound):
		writeLedgerError(w, http.StatusNotFound, "poll_not_found", err)
	case errors.Is(err, domainerrors.ErrPollEnded):
		writeLedgerError(w, http.StatusGone, "poll_ended", err)
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		writeLedgerError(w, http.StatusConflict, "already_voted", err)
	case errors.Is(err, domainerrors.ErrInvalidOption):
		writeLedgerError(w, http.StatusUnprocessableEntity, "invalid_option", err)
	case errors.Is(err, domainerrors.ErrInvalidPollInput):
		writeLedgerError(w, http.StatusBadRequest, "invalid_poll_input", err)
	case errors.Is(err, domainerrors.ErrForbidden):
		writeLedgerError(w, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, domainerrors.ErrConflict):
		writePollError(w, http.StatusServiceUnavailable, "contention", "poll is busy, retry later")
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		ErrorCode: domainerrors.Code(err),
	})
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

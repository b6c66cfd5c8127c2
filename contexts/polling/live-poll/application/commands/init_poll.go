package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "livepoll/contexts/polling/live-poll/application"
	"livepoll/contexts/polling/live-poll/domain/entities"
	domainerrors "livepoll/contexts/polling/live-poll/domain/errors"
	"livepoll/contexts/polling/live-poll/domain/services"
	"livepoll/contexts/polling/live-poll/ports"
)

// InitPollCommand defines (or redefines) the single poll of the deployment.
type InitPollCommand struct {
	ActorID  string
	Question string
	Options  []string
	Deadline uint64
}

// InitPollUseCase creates the poll record, replacing any previous one. Every
// initialization gets a fresh poll id, so voter markers of a replaced poll
// stop counting without being deleted.
type InitPollUseCase struct {
	Polls ports.PollStore
	Clock ports.Clock
	IDGen ports.IDGenerator
	// Admins restricts who may initialize. Empty means anyone.
	Admins []string
	Logger *slog.Logger
}

func (uc InitPollUseCase) InitPoll(ctx context.Context, cmd InitPollCommand) (entities.Poll, error) {
	logger := application.LayerLogger(uc.Logger, "application")
	actorID := strings.TrimSpace(cmd.ActorID)
	logger.Info("poll init processing started",
		"event", "live_poll_init_started",
		"actor_id", actorID,
		"option_count", len(cmd.Options),
		"deadline", cmd.Deadline,
	)

	if !uc.isAdmin(actorID) {
		logger.Warn("poll init rejected for non-admin actor",
			"event", "live_poll_init_forbidden",
			"actor_id", actorID,
		)
		return entities.Poll{}, domainerrors.ErrForbidden
	}
	if err := services.ValidateInit(cmd.Options); err != nil {
		logger.Warn("poll init validation failed",
			"event", "live_poll_init_validation_failed",
			"actor_id", actorID,
			"option_count", len(cmd.Options),
		)
		return entities.Poll{}, err
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Poll{}, err
	}
	now := uc.now()
	poll := entities.Poll{
		PollID:    pollID,
		Question:  cmd.Question,
		Options:   append([]string(nil), cmd.Options...),
		Deadline:  cmd.Deadline,
		Tally:     entities.Tally{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Polls.Initialize(ctx, poll, now); err != nil {
		logger.Error("poll init persist failed",
			"event", "live_poll_init_persist_failed",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return entities.Poll{}, err
	}

	logger.Info("poll initialized",
		"event", "live_poll_initialized",
		"poll_id", poll.PollID,
		"actor_id", actorID,
		"option_count", len(poll.Options),
		"deadline", poll.Deadline,
	)
	return poll, nil
}

func (uc InitPollUseCase) isAdmin(actorID string) bool {
	if len(uc.Admins) == 0 {
		return true
	}
	if actorID == "" {
		return false
	}
	for _, admin := range uc.Admins {
		if strings.EqualFold(strings.TrimSpace(admin), actorID) {
			return true
		}
	}
	return false
}

func (uc InitPollUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

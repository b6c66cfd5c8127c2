package livepoll

import (
	"log/slog"
	"time"

	httpadapter "livepoll/contexts/polling/live-poll/adapters/http"
	"livepoll/contexts/polling/live-poll/adapters/memory"
	"livepoll/contexts/polling/live-poll/application/commands"
	"livepoll/contexts/polling/live-poll/application/queries"
	"livepoll/contexts/polling/live-poll/application/workers"
	"livepoll/contexts/polling/live-poll/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Relay    workers.OutboxRelay
	Reaper   workers.ExpiryReaper
	Observer workers.VoteObserver
	Store    *memory.Store
}

type Dependencies struct {
	Polls       ports.PollStore
	Outbox      ports.OutboxRepository
	Sweeper     ports.ExpirySweeper
	Publisher   ports.EventPublisher
	Subscriber  ports.EventSubscriber
	Auth        ports.Authenticator
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Admins      []string
	MaxAttempts int
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			Init: commands.InitPollUseCase{
				Polls:  deps.Polls,
				Clock:  deps.Clock,
				IDGen:  deps.IDGen,
				Admins: deps.Admins,
				Logger: deps.Logger,
			},
			Votes: commands.VoteUseCase{
				Polls:       deps.Polls,
				Auth:        deps.Auth,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				MaxAttempts: deps.MaxAttempts,
				Logger:      deps.Logger,
			},
			Polls: queries.PollQueryUseCase{
				Polls: deps.Polls,
				Clock: deps.Clock,
			},
			Logger: deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Reaper: workers.ExpiryReaper{
			Sweeper: deps.Sweeper,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		Observer: workers.VoteObserver{
			Subscriber: deps.Subscriber,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory.Store. Publisher may be
// nil when the relay is not run.
func NewInMemoryModule(
	auth ports.Authenticator,
	publisher ports.EventPublisher,
	horizon time.Duration,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(horizon)
	module := NewModule(Dependencies{
		Polls:     store,
		Outbox:    store,
		Sweeper:   store,
		Publisher: publisher,
		Auth:      auth,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}

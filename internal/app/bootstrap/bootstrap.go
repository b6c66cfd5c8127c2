package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	livepoll "livepoll/contexts/polling/live-poll"
	authadapter "livepoll/contexts/polling/live-poll/adapters/auth"
	"livepoll/contexts/polling/live-poll/adapters/memory"
	postgresadapter "livepoll/contexts/polling/live-poll/adapters/postgres"
	rabbitmqadapter "livepoll/contexts/polling/live-poll/adapters/rabbitmq"
	redisadapter "livepoll/contexts/polling/live-poll/adapters/redis"
	"livepoll/contexts/polling/live-poll/ports"
	"livepoll/internal/platform/cache"
	"livepoll/internal/platform/config"
	"livepoll/internal/platform/db"
	"livepoll/internal/platform/httpserver"
	"livepoll/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server *httpserver.Server
	module livepoll.Module
	// worker runs inside the api process when the store or the bus cannot be
	// shared with a separate worker process.
	worker  *WorkerApp
	closers []func() error
	logger  *slog.Logger
}

type WorkerApp struct {
	module       livepoll.Module
	pollInterval time.Duration
	closers      []func() error
	logger       *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewAPI(ctx, cfg)
}

func NewAPI(ctx context.Context, cfg config.Config) (*APIApp, error) {
	logger := NewLogger(cfg).With("service", cfg.ServiceName, "process", "api")
	module, closers, err := buildModule(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &APIApp{
		server:  httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort), cfg.AuthMode),
		module:  module,
		closers: closers,
		logger:  logger,
	}
	if cfg.StoreDriver == config.StoreMemory || cfg.EventBus == config.BusInProcess {
		app.worker = &WorkerApp{
			module:       module,
			pollInterval: cfg.WorkerPollInterval,
			logger:       logger,
		}
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWorker(ctx, cfg)
}

// NewWorker builds the standalone relay process. It needs a store and a bus
// shared with the api process.
func NewWorker(ctx context.Context, cfg config.Config) (*WorkerApp, error) {
	if cfg.StoreDriver == config.StoreMemory {
		return nil, fmt.Errorf("STORE_DRIVER=%s keeps state inside the api process; run the api alone", config.StoreMemory)
	}
	if cfg.EventBus == config.BusInProcess {
		return nil, fmt.Errorf("EVENT_BUS=%s cannot reach observers outside this process; use %s", config.BusInProcess, config.BusRabbitMQ)
	}
	logger := NewLogger(cfg).With("service", cfg.ServiceName, "process", "worker")
	module, closers, err := buildModule(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		module:       module,
		pollInterval: cfg.WorkerPollInterval,
		closers:      closers,
		logger:       logger,
	}, nil
}

func buildModule(ctx context.Context, cfg config.Config, logger *slog.Logger) (livepoll.Module, []func() error, error) {
	var closers []func() error
	fail := func(err error) (livepoll.Module, []func() error, error) {
		closeAll(closers)
		return livepoll.Module{}, nil, err
	}

	deps := livepoll.Dependencies{
		Clock:       postgresadapter.SystemClock{},
		IDGen:       postgresadapter.UUIDGenerator{},
		Admins:      cfg.PollAdmins,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	}

	var memStore *memory.Store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		memStore = memory.NewStore(cfg.Horizon)
		deps.Polls, deps.Outbox, deps.Sweeper = memStore, memStore, memStore
	case config.StorePostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pg.Close)
		repo := postgresadapter.NewRepository(pg.DB, cfg.Horizon, logger)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return fail(err)
			}
		}
		deps.Polls, deps.Outbox, deps.Sweeper = repo, repo, repo
	case config.StoreRedis:
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client.Close)
		store := redisadapter.NewStore(client, cfg.RedisNamespace, cfg.Horizon, logger)
		deps.Polls, deps.Outbox = store, store
	default:
		return fail(fmt.Errorf("unsupported store driver %q", cfg.StoreDriver))
	}

	switch cfg.EventBus {
	case config.BusInProcess:
		bus := messaging.NewBus(logger)
		deps.Publisher, deps.Subscriber = bus, bus
	case config.BusRabbitMQ:
		mq, err := messaging.ConnectRabbitMQ(ctx, cfg.RabbitMQURL, 5, 2*time.Second, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, mq.Close)
		publisher, err := rabbitmqadapter.NewPublisher(mq.Channel, cfg.RabbitMQQueue, logger)
		if err != nil {
			return fail(err)
		}
		deps.Publisher = publisher
		deps.Subscriber = rabbitmqadapter.NewSubscriber(mq.Channel, cfg.RabbitMQQueue, logger)
	default:
		return fail(fmt.Errorf("unsupported event bus %q", cfg.EventBus))
	}

	auth, err := newAuthenticator(cfg.AuthMode)
	if err != nil {
		return fail(err)
	}
	deps.Auth = auth

	module := livepoll.NewModule(deps)
	module.Relay.BatchSize = cfg.OutboxBatchSize
	module.Store = memStore
	return module, closers, nil
}

func newAuthenticator(mode string) (ports.Authenticator, error) {
	switch mode {
	case config.AuthEd25519:
		return authadapter.Ed25519Authenticator{}, nil
	case config.AuthHeader:
		return authadapter.HeaderAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
}

// Handler exposes the routed API, mainly for tests.
func (a *APIApp) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"embedded_worker", a.worker != nil,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	if a.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.worker.Run(ctx); err != nil {
				errs <- fmt.Errorf("embedded worker: %w", err)
			}
		}()
	}
	go func() {
		errs <- a.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	wg.Wait()
	return runErr
}

func (a *APIApp) Close() error {
	return closeAll(a.closers)
}

// Run starts the vote observer, then drives the reaper and the outbox relay
// on a fixed interval until ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.module.Observer.Start(ctx); err != nil {
		return err
	}

	interval := w.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", interval.String(),
	)

	for {
		if err := w.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Warn("worker cycle failed",
				"event", "bootstrap_worker_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle sweeps expired entries and relays one batch of pending events.
func (w *WorkerApp) RunCycle(ctx context.Context) error {
	if _, err := w.module.Reaper.RunOnce(ctx); err != nil {
		return err
	}
	_, err := w.module.Relay.RunOnce(ctx)
	return err
}

func (w *WorkerApp) Close() error {
	return closeAll(w.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	livepoll "livepoll/contexts/polling/live-poll"
	"livepoll/internal/platform/config"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "livepoll/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	poll   livepoll.Module
	http   *http.Server

	// voterHeader is the only header a vote identity is read from.
	voterHeader string
}

// New builds the API server.
//
// @title livepoll API
// @version 1.0
// @description Single-poll voting ledger.
// @BasePath /
func New(poll livepoll.Module, logger *slog.Logger, addr string, authMode string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		poll:   poll,

		voterHeader: voterHeaderFor(authMode),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routed mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/poll/v1/poll", s.handleInitPoll)
	s.mux.HandleFunc("GET /api/poll/v1/poll", s.handleGetPoll)
	s.mux.HandleFunc("POST /api/poll/v1/poll/votes", s.handleVote)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// voterHeaderFor maps AUTH_MODE to the identity header. Behind a gateway the
// client must not be able to pick its own identity.
func voterHeaderFor(authMode string) string {
	if authMode == config.AuthHeader {
		return "X-User-Id"
	}
	return "X-Voter-Id"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livepoll/internal/platform/config"
)

func memoryConfig() config.Config {
	return config.Config{
		ServiceName:        "livepoll-test",
		HTTPPort:           "0",
		StoreDriver:        config.StoreMemory,
		EventBus:           config.BusInProcess,
		AuthMode:           config.AuthHeader,
		Horizon:            time.Hour,
		MaxAttempts:        3,
		WorkerPollInterval: 10 * time.Millisecond,
		OutboxBatchSize:    10,
		LogLevel:           "error",
		LogFormat:          "text",
	}
}

func serve(t *testing.T, handler http.Handler, method string, path string, body string, voter string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if voter != "" {
		req.Header.Set("X-User-Id", voter)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestNewAPIWithMemoryDriverServesAndRelays(t *testing.T) {
	ctx := context.Background()
	app, err := NewAPI(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if app.worker == nil {
		t.Fatalf("expected an embedded worker for the memory driver")
	}

	handler := app.Handler()
	if code := serve(t, handler, http.MethodPost, "/api/poll/v1/poll", `{"question":"Q","options":["a","b"],"deadline":4000000000}`, ""); code != http.StatusCreated {
		t.Fatalf("init poll: got %d", code)
	}
	if code := serve(t, handler, http.MethodPost, "/api/poll/v1/poll/votes", `{"option_index":1}`, "alice"); code != http.StatusOK {
		t.Fatalf("vote: got %d", code)
	}

	pending, err := app.module.Store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending vote event, got %d (%v)", len(pending), err)
	}
	if err := app.worker.RunCycle(ctx); err != nil {
		t.Fatalf("worker cycle: %v", err)
	}
	pending, _ = app.module.Store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected relay to drain the outbox, got %d rows", len(pending))
	}
}

func TestNewWorkerRequiresSharedInfrastructure(t *testing.T) {
	if _, err := NewWorker(context.Background(), memoryConfig()); err == nil {
		t.Fatalf("expected memory store to be rejected")
	}
	cfg := memoryConfig()
	cfg.StoreDriver = config.StoreRedis
	if _, err := NewWorker(context.Background(), cfg); err == nil {
		t.Fatalf("expected in-process bus to be rejected")
	}
}

func TestNewAuthenticatorRejectsUnknownMode(t *testing.T) {
	if _, err := newAuthenticator("basic"); err == nil {
		t.Fatalf("expected error for unknown auth mode")
	}
	for _, mode := range []string{config.AuthEd25519, config.AuthHeader} {
		if _, err := newAuthenticator(mode); err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ":8080"},
		{in: "9000", want: ":9000"},
		{in: ":7000", want: ":7000"},
		{in: " 80 ", want: ":80"},
	}
	for _, tc := range cases {
		if got := normalizeAddr(tc.in); got != tc.want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(&out, config.Config{LogLevel: "warn", LogFormat: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "event", "test_event")
	if strings.Contains(out.String(), "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out.String())
	}
	if !strings.Contains(out.String(), `"event":"test_event"`) {
		t.Fatalf("expected json output, got %s", out.String())
	}
}

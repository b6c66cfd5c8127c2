package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"STORE_DRIVER", "EVENT_BUS", "AUTH_MODE", "DURABILITY_HORIZON", "POLL_ADMINS", "VOTE_MAX_ATTEMPTS"} {
		t.Setenv(name, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StoreMemory || cfg.EventBus != BusInProcess || cfg.AuthMode != AuthEd25519 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Horizon != 24*time.Hour || cfg.MaxAttempts != 5 || len(cfg.PollAdmins) != 0 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("POLL_ADMINS", " root , ops ,")
	t.Setenv("DURABILITY_HORIZON", "90m")
	t.Setenv("VOTE_MAX_ATTEMPTS", "9")
	t.Setenv("AUTH_MODE", "header")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StoreRedis || cfg.AuthMode != AuthHeader {
		t.Fatalf("unexpected drivers: %#v", cfg)
	}
	if len(cfg.PollAdmins) != 2 || cfg.PollAdmins[1] != "ops" {
		t.Fatalf("unexpected admins: %#v", cfg.PollAdmins)
	}
	if cfg.Horizon != 90*time.Minute || cfg.MaxAttempts != 9 {
		t.Fatalf("unexpected tuning: %#v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":       "sqlite",
		"EVENT_BUS":          "kafka",
		"AUTH_MODE":          "none",
		"DURABILITY_HORIZON": "soon",
		"VOTE_MAX_ATTEMPTS":  "0",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", name, value)
			}
		})
	}
}

func TestPostgresDriverRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing POSTGRES_DSN to be rejected")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("LIVEPOLL_TEST_A=from-file\nLIVEPOLL_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("LIVEPOLL_TEST_A", "from-env")
	t.Setenv("LIVEPOLL_TEST_B", "")
	os.Unsetenv("LIVEPOLL_TEST_B")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("LIVEPOLL_TEST_A"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
	if got := os.Getenv("LIVEPOLL_TEST_B"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/sixthdegree/internal/store"
	pkgconfig "github.com/starford/sixthdegree/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Store.Driver != store.DriverSQLite {
		t.Errorf("driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestStoreConfig_UnknownDriver(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestStoreConfig_PostgresRequiresDSN(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = store.DriverPostgres
	err := cfg.Validate()
	if err == nil {
		t.Fatal("postgres without dsn should fail")
	}
	if !strings.Contains(err.Error(), "postgres: (dsn: cannot be blank") {
		t.Errorf("error does not name the yaml key: %v", err)
	}

	cfg.Store.Postgres.DSN = "postgres://localhost/sixthdegree"
	cfg.Store.SQLite.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres with dsn should pass even without sqlite path: %v", err)
	}
}

func TestSeedConfig_PathRequiredWhenUsed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Seed.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unused seed path may be empty: %v", err)
	}
	cfg.Seed.Watch = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("watch without path should fail")
	}
}

func TestBreakerConfig_ThresholdBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cache.Breaker.FailureThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("threshold above 1 should fail")
	}
	if err := cfg.Validate(); !strings.Contains(err.Error(), "failure_threshold") {
		t.Errorf("error does not name the yaml key: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("SIXTHDEGREE_TEST_DSN", "postgres://u:p@db/graph")
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `app:
  log_level: debug
  http:
    port: 9090
    cors_origins: ["http://localhost:3000"]
store:
  driver: postgres
  postgres:
    dsn: ${SIXTHDEGREE_TEST_DSN}
    max_conns: 4
cache:
  warm_on_start: false
  breaker:
    max_requests: 2
    interval: 1m
    timeout: 15s
    failure_threshold: 0.5
    min_requests: 3
sse:
  stale_throttle: 500ms
  keep_alive: 5s
tracing:
  enabled: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Store.Postgres.DSN != "postgres://u:p@db/graph" {
		t.Errorf("dsn = %q, env not expanded", cfg.Store.Postgres.DSN)
	}
	if cfg.Cache.WarmOnStart || cfg.Cache.Breaker.Timeout != 15*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.SSE.StaleThrottle != 500*time.Millisecond || cfg.SSE.KeepAlive != 5*time.Second || !cfg.Tracing.Enabled {
		t.Errorf("sse = %+v, tracing = %+v", cfg.SSE, cfg.Tracing)
	}
	// Unset keys keep their defaults.
	if cfg.Seed.Path != "./data/seed.yaml" {
		t.Errorf("seed path = %q", cfg.Seed.Path)
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("port = %d, want default", cfg.App.HTTP.Port)
	}
}

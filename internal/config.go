package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/store"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" json:"app"`
	Store   StoreConfig       `yaml:"store" json:"store"`
	Cache   CacheConfig       `yaml:"cache" json:"cache"`
	Seed    SeedConfig        `yaml:"seed" json:"seed"`
	SSE     SSEConfig         `yaml:"sse" json:"sse"`
	Tracing TracingConfig     `yaml:"tracing" json:"tracing"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Seed.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return c.SSE.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" json:"log_level"`
	HTTP     HTTPConfig `yaml:"http" json:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
	// CORSOrigins lists origins allowed to call the API; empty allows any.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the person store.
type StoreConfig struct {
	Driver   string         `yaml:"driver" json:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.SQLite, validation.Skip.When(c.Driver != store.DriverSQLite)),
		validation.Field(&c.Postgres, validation.Skip.When(c.Driver != store.DriverPostgres)),
	)
}

// Options converts the configuration to store.Options.
func (c *StoreConfig) Options() store.Options {
	return store.Options{
		Driver:      c.Driver,
		SQLitePath:  c.SQLite.Path,
		PostgresDSN: c.Postgres.DSN,
		MaxConns:    c.Postgres.MaxConns,
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" json:"dsn"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
}

// Validate validates the PostgreSQL configuration.
func (c PostgresConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxConns, validation.Min(int32(0))),
	)
}

// CacheConfig holds graph cache configuration.
type CacheConfig struct {
	// WarmOnStart builds the snapshot before serving instead of on first search.
	WarmOnStart bool          `yaml:"warm_on_start" json:"warm_on_start"`
	Breaker     BreakerConfig `yaml:"breaker" json:"breaker"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return c.Breaker.Validate()
}

// BreakerConfig configures the circuit breaker around cache builds.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" json:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests" json:"min_requests"`
}

// Validate validates the breaker configuration.
func (c *BreakerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxRequests, validation.Required),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.FailureThreshold, validation.Required, validation.Max(1.0)),
	)
}

// Graph converts the configuration to graph.BreakerConfig.
func (c *BreakerConfig) Graph() graph.BreakerConfig {
	return graph.BreakerConfig{
		MaxRequests:      c.MaxRequests,
		Interval:         c.Interval,
		Timeout:          c.Timeout,
		FailureThreshold: c.FailureThreshold,
		MinRequests:      c.MinRequests,
	}
}

// SeedConfig controls loading the store from a YAML seed file.
type SeedConfig struct {
	Path          string `yaml:"path" json:"path"`
	ImportOnStart bool   `yaml:"import_on_start" json:"import_on_start"`
	// Watch re-imports the file when it changes. Each import reloads the
	// whole graph.
	Watch bool `yaml:"watch" json:"watch"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.ImportOnStart || c.Watch, validation.Required)),
	)
}

// SSEConfig holds Server-Sent Events configuration.
type SSEConfig struct {
	StaleThrottle time.Duration `yaml:"stale_throttle" json:"stale_throttle"`
	KeepAlive     time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StaleThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.KeepAlive, validation.Min(time.Duration(0))),
	)
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	breaker := graph.DefaultBreakerConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			SQLite: SQLiteConfig{
				Path: "./sixthdegree.db",
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Cache: CacheConfig{
			WarmOnStart: true,
			Breaker: BreakerConfig{
				MaxRequests:      breaker.MaxRequests,
				Interval:         breaker.Interval,
				Timeout:          breaker.Timeout,
				FailureThreshold: breaker.FailureThreshold,
				MinRequests:      breaker.MinRequests,
			},
		},
		Seed: SeedConfig{
			Path: "./data/seed.yaml",
		},
		SSE: SSEConfig{
			StaleThrottle: 2 * time.Second,
			KeepAlive:     15 * time.Second,
		},
	}
}

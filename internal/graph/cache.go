package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/starford/sixthdegree/internal/models"
	"github.com/starford/sixthdegree/internal/observability"
)

var tracer = otel.Tracer("github.com/starford/sixthdegree/internal/graph")

// Source is the bulk-read side of the person store a snapshot is built from.
type Source interface {
	ListPersons(ctx context.Context) ([]models.Person, error)
	ListConnections(ctx context.Context) ([]models.Connection, error)
}

// BreakerConfig configures the circuit breaker around snapshot reads.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for build events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics records build results on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Cache) { c.breakerCfg = cfg }
}

// WithOnReload registers fn to run after every successful publish.
func WithOnReload(fn func(*Snapshot)) Option {
	return func(c *Cache) { c.onReload = fn }
}

// Cache owns the current graph snapshot.
//
// The snapshot is absent until the first EnsureLoaded or Reload. Builds are
// serialized; concurrent EnsureLoaded callers that find no snapshot share a
// single build. A failed build publishes nothing and the next call retries.
type Cache struct {
	source     Source
	logger     *slog.Logger
	metrics    *observability.Metrics
	breakerCfg BreakerConfig
	breaker    *gobreaker.CircuitBreaker
	onReload   func(*Snapshot)

	current atomic.Pointer[Snapshot]
	flight  singleflight.Group
	buildMu sync.Mutex
}

// NewCache creates an empty cache over src.
func NewCache(src Source, opts ...Option) *Cache {
	c := &Cache{
		source:     src,
		logger:     slog.Default(),
		breakerCfg: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := c.breakerCfg
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-cache-source",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("graph cache: breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c
}

// Loaded reports whether a snapshot has been published.
func (c *Cache) Loaded() bool {
	return c.current.Load() != nil
}

// Current returns the published snapshot, or nil.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// EnsureLoaded returns the current snapshot, building it first if there is none.
func (c *Cache) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}

	// The shared build must not fail because the first caller went away.
	buildCtx := context.WithoutCancel(ctx)
	v, err, _ := c.flight.Do("load", func() (any, error) {
		if s := c.current.Load(); s != nil {
			return s, nil
		}
		return c.build(buildCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Reload unconditionally builds a new snapshot and publishes it.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	return c.build(ctx)
}

// ShortestPath runs a BFS on the current snapshot, loading it if needed.
func (c *Cache) ShortestPath(ctx context.Context, startID, endID int64) (PathResult, error) {
	s, err := c.EnsureLoaded(ctx)
	if err != nil {
		return PathResult{}, err
	}
	return s.ShortestPath(startID, endID)
}

// Export returns the visualization payload of the current snapshot, loading it if needed.
func (c *Cache) Export(ctx context.Context) (Export, error) {
	s, err := c.EnsureLoaded(ctx)
	if err != nil {
		return Export{}, err
	}
	return s.Export(), nil
}

func (c *Cache) build(ctx context.Context) (*Snapshot, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	ctx, span := tracer.Start(ctx, "graph.Cache.build")
	defer span.End()

	start := time.Now()
	c.logger.Info("graph cache: building snapshot")

	res, err := c.breaker.Execute(func() (any, error) {
		persons, err := c.source.ListPersons(ctx)
		if err != nil {
			return nil, fmt.Errorf("list persons: %w", err)
		}
		conns, err := c.source.ListConnections(ctx)
		if err != nil {
			return nil, fmt.Errorf("list connections: %w", err)
		}
		return NewSnapshot(persons, conns), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot build failed")
		c.metrics.ObserveCacheBuild(err, 0, 0)
		c.logger.Error("graph cache: build failed", slog.String("error", err.Error()))
		return nil, &LoadError{Err: err}
	}

	snap := res.(*Snapshot)
	c.current.Store(snap)

	span.SetAttributes(
		attribute.Int("graph.persons", snap.PersonCount()),
		attribute.Int("graph.edges", snap.EdgeCount()),
		attribute.String("graph.version", snap.Version.String()),
	)
	c.metrics.ObserveCacheBuild(nil, snap.PersonCount(), snap.EdgeCount())
	c.logger.Info("graph cache: snapshot published",
		slog.String("version", snap.Version.String()),
		slog.Int("persons", snap.PersonCount()),
		slog.Int("edges", snap.EdgeCount()),
		slog.Duration("took", time.Since(start)))

	if c.onReload != nil {
		c.onReload(snap)
	}
	return snap, nil
}

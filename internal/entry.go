// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sixthdegree/internal/api"
	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/mcpserver"
	"github.com/starford/sixthdegree/internal/observability"
	"github.com/starford/sixthdegree/internal/search"
	"github.com/starford/sixthdegree/internal/seed"
	"github.com/starford/sixthdegree/internal/sse"
	"github.com/starford/sixthdegree/internal/store"
)

const metricsNamespace = "sixthdegree"

// components are the pieces shared by every command.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   store.Store
	cache   *graph.Cache
	svc     *search.Service

	shutdownTracing func(context.Context) error
}

func (c *components) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.shutdownTracing(ctx); err != nil {
		c.logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
	}
	if err := c.store.Close(); err != nil {
		c.logger.Warn("store close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup initializes logging and tracing, opens the store and builds the
// cache and search service.
func setup(ctx context.Context, app *application, cacheOpts ...graph.Option) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("seed_path", cfg.Seed.Path),
		slog.Bool("tracing", cfg.Tracing.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	shutdownTracing, err := observability.SetupTracing(cfg.Tracing.Enabled, app.logOut)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}

	metrics := observability.NewMetrics(metricsNamespace)
	cache := graph.NewCache(st, append([]graph.Option{
		graph.WithLogger(logger),
		graph.WithMetrics(metrics),
		graph.WithBreaker(cfg.Cache.Breaker.Graph()),
	}, cacheOpts...)...)

	return &components{
		cfg:             cfg,
		logger:          logger,
		metrics:         metrics,
		store:           st,
		cache:           cache,
		svc:             search.NewService(st, cache, logger, metrics),
		shutdownTracing: shutdownTracing,
	}, nil
}

// prepare runs the optional seed import and cache warmup. Failures are
// logged; the cache retries on first use.
func (c *components) prepare(ctx context.Context, importer *seed.Importer) {
	if c.cfg.Seed.ImportOnStart {
		if _, err := importer.Import(ctx, c.cfg.Seed.Path); err != nil {
			c.logger.Warn("initial seed import failed", slog.String("error", err.Error()))
		}
	}
	if c.cfg.Cache.WarmOnStart && !c.cache.Loaded() {
		if _, err := c.cache.EnsureLoaded(ctx); err != nil {
			c.logger.Warn("cache warmup failed", slog.String("error", err.Error()))
		}
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	// SSE broker. Created first so the cache can announce reloads.
	broker := sse.NewBroker(sse.Config{
		StaleThrottle: app.config.SSE.StaleThrottle,
		KeepAlive:     app.config.SSE.KeepAlive,
	})
	defer broker.Close()

	c, err := setup(ctx, app, graph.WithOnReload(func(s *graph.Snapshot) {
		broker.PublishReload(sse.ReloadInfo{
			Version: s.Version.String(),
			Persons: s.PersonCount(),
			Edges:   s.EdgeCount(),
		})
	}))
	if err != nil {
		return err
	}
	defer c.close()

	cfg := c.cfg
	logger := c.logger

	importer := seed.NewImporter(c.store, c.cache, logger)
	c.prepare(ctx, importer)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.metrics.Middleware)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(c))

	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api, SSE included.
	r.Mount("/api", api.NewRouter(c.svc, c.store, broker, broker, cfg.App.HTTP.CORSOrigins))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the seed file; every change is a full import and reload.
	if cfg.Seed.Watch {
		g.Go(func() error {
			if err := seed.Watch(gCtx, cfg.Seed.Path, importer, logger); err != nil {
				logger.Error("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first; Shutdown waits for active handlers.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func readyHandler(c *components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := c.store.Ping(ctx); err != nil {
			c.logger.Warn("readiness: store ping failed", slog.String("error", err.Error()))
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"cacheLoaded": c.cache.Loaded(),
		})
	}
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// another output is set.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := setup(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()

	c.prepare(ctx, seed.NewImporter(c.store, c.cache, c.logger))

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// RunSeed imports the configured seed file once and exits. A running server
// picks the change up on its next reload or through its seed watcher.
func RunSeed(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()

	if path == "" {
		path = c.cfg.Seed.Path
	}
	res, err := seed.NewImporter(c.store, nil, c.logger).Import(ctx, path)
	if err != nil {
		return err
	}
	return printSeedResult(os.Stdout, "imported", path, res)
}

// RunExport writes the store contents to path in the seed format.
func RunExport(ctx context.Context, path string, opts ...Option) error {
	if path == "" {
		return errors.New("export: output path is required")
	}
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()

	res, err := seed.Export(ctx, c.store, path)
	if err != nil {
		return err
	}
	return printSeedResult(os.Stdout, "exported", path, res)
}

func printSeedResult(w io.Writer, verb, path string, res seed.Result) error {
	_, err := fmt.Fprintf(w, "%s %s: %d persons, %d connections (sha256 %s)\n",
		verb, path, res.Persons, res.Connections, res.Checksum)
	return err
}

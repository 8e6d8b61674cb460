// Package search answers shortest-connection queries by person name and
// reports aggregate graph statistics.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/models"
	"github.com/starford/sixthdegree/internal/observability"
	"github.com/starford/sixthdegree/internal/store"
)

var tracer = otel.Tracer("github.com/starford/sixthdegree/internal/search")

// Result is the outcome of a search between two named persons.
type Result struct {
	Path          []models.Person `json:"path"`
	PathLength    int             `json:"pathLength"`
	NodesExplored int             `json:"nodesExplored"`
	SearchTimeMs  int64           `json:"searchTimeMs"`
	Found         bool            `json:"found"`
}

// PersonSummary is the list-view projection of a person.
type PersonSummary struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Category     *string `json:"category"`
	WikipediaURL string  `json:"wikipediaUrl"`
}

// Stats holds aggregate counts read from the store.
type Stats struct {
	TotalPersons     int64 `json:"totalPersons"`
	TotalConnections int64 `json:"totalConnections"`
	// AverageConnectionsPerPerson is rounded to two decimals, or 0 for an empty store.
	AverageConnectionsPerPerson json.Number `json:"averageConnectionsPerPerson"`
	CacheLoaded                 bool        `json:"cacheLoaded"`
}

// ReloadSummary describes a freshly published snapshot.
type ReloadSummary struct {
	Version string    `json:"version"`
	Persons int       `json:"persons"`
	Edges   int       `json:"edges"`
	BuiltAt time.Time `json:"builtAt"`
}

// Service coordinates the store and the graph cache.
type Service struct {
	src     store.Source
	cache   *graph.Cache
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a search service. logger and metrics may be nil.
func NewService(src store.Source, cache *graph.Cache, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, cache: cache, logger: logger, metrics: metrics}
}

// Search finds the shortest directed path from startName to endName.
//
// Names resolve in order, start first, so a request naming two unknown
// persons reports the start. An unknown name returns
// *apperr.PersonNotFoundError; a cache that cannot be built returns an error
// matching graph.ErrCacheLoadFailed.
func (s *Service) Search(ctx context.Context, startName, endName string) (*Result, error) {
	began := time.Now()
	ctx, span := tracer.Start(ctx, "search.Service.Search", trace.WithAttributes(
		attribute.String("search.start", startName),
		attribute.String("search.end", endName),
	))
	defer span.End()

	res, err := s.search(ctx, startName, endName)
	elapsed := time.Since(began)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		s.metrics.ObserveSearch(outcomeOf(err), 0, elapsed)
		return nil, err
	}

	res.SearchTimeMs = elapsed.Milliseconds()
	outcome := observability.OutcomeNotFound
	if res.Found {
		outcome = observability.OutcomeFound
	}
	s.metrics.ObserveSearch(outcome, res.NodesExplored, elapsed)
	span.SetAttributes(
		attribute.Bool("search.found", res.Found),
		attribute.Int("search.path_length", res.PathLength),
		attribute.Int("search.nodes_explored", res.NodesExplored),
	)
	s.logger.Debug("search completed",
		slog.String("start", startName),
		slog.String("end", endName),
		slog.Bool("found", res.Found),
		slog.Int("nodes_explored", res.NodesExplored),
		slog.Duration("took", elapsed))
	return res, nil
}

func (s *Service) search(ctx context.Context, startName, endName string) (*Result, error) {
	start, err := s.src.FindPersonByName(ctx, startName)
	if err != nil {
		return nil, err
	}
	end, err := s.src.FindPersonByName(ctx, endName)
	if err != nil {
		return nil, err
	}

	if start.ID == end.ID {
		return &Result{
			Path:          []models.Person{*start},
			PathLength:    0,
			NodesExplored: 1,
			Found:         true,
		}, nil
	}

	pr, err := s.cache.ShortestPath(ctx, start.ID, end.ID)
	if err != nil {
		if errors.Is(err, graph.ErrBrokenPredecessorChain) {
			s.logger.Error("search: path reconstruction failed",
				slog.Int64("start_id", start.ID),
				slog.Int64("end_id", end.ID),
				slog.String("error", err.Error()))
		}
		return nil, err
	}
	return &Result{
		Path:          pr.Path,
		PathLength:    pr.PathLength,
		NodesExplored: pr.NodesExplored,
		Found:         pr.Found,
	}, nil
}

// outcomeOf counts an unknown person name as a miss rather than a failure.
func outcomeOf(err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return observability.OutcomeNotFound
	}
	return observability.OutcomeError
}

// ListAllPersons returns every person ordered by name.
func (s *Service) ListAllPersons(ctx context.Context) ([]PersonSummary, error) {
	ctx, span := tracer.Start(ctx, "search.Service.ListAllPersons")
	defer span.End()

	persons, err := s.src.ListPersons(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]PersonSummary, len(persons))
	for i, p := range persons {
		out[i] = PersonSummary{ID: p.ID, Name: p.Name, Category: p.Category, WikipediaURL: p.WikipediaURL}
	}
	return out, nil
}

// GraphData returns the visualization export of the cached graph.
func (s *Service) GraphData(ctx context.Context) (graph.Export, error) {
	ctx, span := tracer.Start(ctx, "search.Service.GraphData")
	defer span.End()

	out, err := s.cache.Export(ctx)
	if err != nil {
		span.RecordError(err)
		return graph.Export{}, err
	}
	return out, nil
}

// GraphStats reports store counts and whether the cache has been built.
// Counts come from the store, so they may differ from the cached snapshot.
func (s *Service) GraphStats(ctx context.Context) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "search.Service.GraphStats")
	defer span.End()

	persons, err := s.src.CountPersons(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	conns, err := s.src.CountConnections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Stats{
		TotalPersons:                persons,
		TotalConnections:            conns,
		AverageConnectionsPerPerson: average(conns, persons),
		CacheLoaded:                 s.cache.Loaded(),
	}, nil
}

// average returns conns/persons rounded half away from zero to two decimals.
func average(conns, persons int64) json.Number {
	if persons == 0 {
		return json.Number("0")
	}
	avg := decimal.NewFromInt(conns).DivRound(decimal.NewFromInt(persons), 2)
	return json.Number(avg.StringFixed(2))
}

// Reload rebuilds the graph cache from the store.
func (s *Service) Reload(ctx context.Context) (*ReloadSummary, error) {
	snap, err := s.cache.Reload(ctx)
	if err != nil {
		return nil, err
	}
	return &ReloadSummary{
		Version: snap.Version.String(),
		Persons: snap.PersonCount(),
		Edges:   snap.EdgeCount(),
		BuiltAt: snap.BuiltAt,
	}, nil
}

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/search"
	"github.com/starford/sixthdegree/internal/sse"
	"github.com/starford/sixthdegree/internal/store"
)

// ChangeNotifier receives write events for connected SSE clients.
type ChangeNotifier interface {
	PublishChange(eventType string, id int64)
}

// Handler holds API route handlers.
type Handler struct {
	svc    *search.Service
	store  store.Store
	events ChangeNotifier
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(svc *search.Service, st store.Store, events ChangeNotifier) *Handler {
	return &Handler{svc: svc, store: st, events: events}
}

func (h *Handler) notify(eventType string, id int64) {
	if h.events != nil {
		h.events.PublishChange(eventType, id)
	}
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var pnf *apperr.PersonNotFoundError
	switch {
	case errors.As(err, &pnf):
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("Person %q not found", pnf.Name)))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalidReference):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("connection references an unknown person"))
	case errors.Is(err, graph.ErrCacheLoadFailed):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("graph cache unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles POST /api/search.
//
//	@Summary		Find the shortest connection path between two persons
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Start and end person names"
//	@Success		200		{object}	SearchResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	NoPathResponse
//	@Failure		503		{object}	errResponse
//	@Router			/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.Search(r.Context(), req.StartPerson, req.EndPerson)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusNotFound, NoPathResponse{
			Error:  fmt.Sprintf("No path found between %q and %q", req.StartPerson, req.EndPerson),
			Result: res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchPersons handles GET /api/search/persons.
//
//	@Summary		List all persons available for search
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	PersonListResponse
//	@Router			/search/persons [get]
func (h *Handler) SearchPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.svc.ListAllPersons(r.Context())
	if err != nil {
		writeError(w, "list persons", err)
		return
	}
	writeJSON(w, http.StatusOK, PersonListResponse{Count: len(persons), Persons: persons})
}

// Graph handles GET /api/search/graph.
//
//	@Summary		Graph export for visualization
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	graph.Export
//	@Router			/search/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GraphData(r.Context())
	if err != nil {
		writeError(w, "graph export", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Stats handles GET /api/search/stats.
//
//	@Summary		Aggregate graph statistics
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	search.Stats
//	@Router			/search/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GraphStats(r.Context())
	if err != nil {
		writeError(w, "graph stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Reload handles POST /api/search/reload.
//
//	@Summary		Rebuild the graph cache from the store
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	search.ReloadSummary
//	@Failure		503	{object}	errResponse
//	@Router			/search/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Reload(r.Context())
	if err != nil {
		writeError(w, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return 0, false
	}
	return id, true
}

// ListPersons handles GET /api/persons.
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		writeError(w, "list persons", err)
		return
	}
	writeJSON(w, http.StatusOK, PersonsResponse{Count: len(persons), Persons: persons})
}

// GetPerson handles GET /api/persons/{id}.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, "get person", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePerson handles POST /api/persons.
//
// The graph cache is not updated; call POST /api/search/reload to pick the
// new person up in searches.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.store.CreatePerson(r.Context(), req.toModel())
	if err != nil {
		writeError(w, "create person", err)
		return
	}
	h.notify(sse.TypePersonCreated, p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// DeletePerson handles DELETE /api/persons/{id}. Its connections go with it.
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeletePerson(r.Context(), id); err != nil {
		writeError(w, "delete person", err)
		return
	}
	h.notify(sse.TypePersonDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// ListConnections handles GET /api/connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.store.ListConnections(r.Context())
	if err != nil {
		writeError(w, "list connections", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionsResponse{Count: len(conns), Connections: conns})
}

// CreateConnection handles POST /api/connections.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.store.CreateConnection(r.Context(), req.FromPersonID, req.ToPersonID)
	if err != nil {
		writeError(w, "create connection", err)
		return
	}
	h.notify(sse.TypeConnectionCreated, c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// DeleteConnection handles DELETE /api/connections/{id}.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteConnection(r.Context(), id); err != nil {
		writeError(w, "delete connection", err)
		return
	}
	h.notify(sse.TypeConnectionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

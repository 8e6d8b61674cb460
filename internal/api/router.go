package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sixthdegree/internal/search"
	"github.com/starford/sixthdegree/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, receives person and connection write events.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *search.Service, st store.Store, events ChangeNotifier, sseHandler http.Handler, corsOrigins []string) chi.Router {
	h := NewHandler(svc, st, events)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(corsOrigins))

	// Search.
	r.Post("/search", h.Search)
	r.Get("/search/persons", h.SearchPersons)
	r.Get("/search/graph", h.Graph)
	r.Get("/search/stats", h.Stats)
	r.Post("/search/reload", h.Reload)

	// Persons CRUD.
	r.Get("/persons", h.ListPersons)
	r.Post("/persons", h.CreatePerson)
	r.Get("/persons/{id}", h.GetPerson)
	r.Delete("/persons/{id}", h.DeletePerson)

	// Connections CRUD.
	r.Get("/connections", h.ListConnections)
	r.Post("/connections", h.CreateConnection)
	r.Delete("/connections/{id}", h.DeleteConnection)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

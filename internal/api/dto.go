package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/sixthdegree/internal/models"
	"github.com/starford/sixthdegree/internal/search"
)

// SearchRequest is the request body for POST /api/search.
type SearchRequest struct {
	StartPerson string `json:"startPerson" example:"Kevin Bacon" validate:"required"`
	EndPerson   string `json:"endPerson" example:"Meryl Streep" validate:"required"`
}

// Validate checks both names are present and within the name length limit.
func (r SearchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StartPerson, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.EndPerson, validation.Required, validation.Length(1, 255)),
	)
}

// SearchResult is the search response type (aliased from the domain layer).
type SearchResult = search.Result

// NoPathResponse is returned with 404 when both persons exist but are not connected.
type NoPathResponse struct {
	Error  string        `json:"error" validate:"required"`
	Result *SearchResult `json:"result" validate:"required"`
}

// PersonListResponse wraps the person list used by search pickers.
type PersonListResponse struct {
	Count   int                    `json:"count" example:"42" validate:"required"`
	Persons []search.PersonSummary `json:"persons" validate:"required"`
}

// CreatePersonRequest is the request body for POST /api/persons.
type CreatePersonRequest struct {
	Name         string  `json:"name" example:"Kevin Bacon" validate:"required"`
	WikipediaURL string  `json:"wikipediaUrl" example:"https://en.wikipedia.org/wiki/Kevin_Bacon"`
	Category     *string `json:"category" example:"actor"`
}

// Validate enforces the person column limits.
func (r CreatePersonRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.WikipediaURL, validation.Length(0, 500), is.URL),
		validation.Field(&r.Category, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

func (r CreatePersonRequest) toModel() models.NewPerson {
	return models.NewPerson{Name: r.Name, WikipediaURL: r.WikipediaURL, Category: r.Category}
}

// CreateConnectionRequest is the request body for POST /api/connections.
type CreateConnectionRequest struct {
	FromPersonID int64 `json:"fromPersonId" example:"1" validate:"required"`
	ToPersonID   int64 `json:"toPersonId" example:"2" validate:"required"`
}

// Validate checks both endpoints are positive ids.
func (r CreateConnectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FromPersonID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ToPersonID, validation.Required, validation.Min(int64(1))),
	)
}

// PersonsResponse wraps the full person records.
type PersonsResponse struct {
	Count   int             `json:"count" validate:"required"`
	Persons []models.Person `json:"persons" validate:"required"`
}

// ConnectionsResponse wraps the connection list.
type ConnectionsResponse struct {
	Count       int                 `json:"count" validate:"required"`
	Connections []models.Connection `json:"connections" validate:"required"`
}

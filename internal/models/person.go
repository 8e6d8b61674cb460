// Package models defines the domain types for the relationship graph.
package models

import "time"

// Person is a node in the relationship graph.
type Person struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	WikipediaURL string    `json:"wikipediaUrl"`
	Category     *string   `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Connection is a directed edge from FromPersonID to ToPersonID.
// Duplicate (from, to) pairs are allowed.
type Connection struct {
	ID           int64     `json:"id"`
	FromPersonID int64     `json:"fromPersonId"`
	ToPersonID   int64     `json:"toPersonId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewPerson holds the writable fields of a Person.
type NewPerson struct {
	Name         string
	WikipediaURL string
	Category     *string
}

// NamedConnection is a connection addressed by person names, used for seeding.
type NamedConnection struct {
	From string
	To   string
}

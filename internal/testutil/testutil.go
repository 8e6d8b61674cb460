// Package testutil provides shared test helpers for setting up stores and graphs.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/sixthdegree/internal/models"
	"github.com/starford/sixthdegree/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *store.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sixthdegree-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := store.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Diamond is A->B, B->C, A->D, D->C plus the isolated person E.
var Diamond = struct {
	Persons     []models.NewPerson
	Connections []models.NamedConnection
}{
	Persons: []models.NewPerson{
		{Name: "A", WikipediaURL: "https://en.wikipedia.org/wiki/A"},
		{Name: "B", WikipediaURL: "https://en.wikipedia.org/wiki/B"},
		{Name: "C", WikipediaURL: "https://en.wikipedia.org/wiki/C"},
		{Name: "D", WikipediaURL: "https://en.wikipedia.org/wiki/D"},
		{Name: "E", WikipediaURL: "https://en.wikipedia.org/wiki/E"},
	},
	Connections: []models.NamedConnection{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
		{From: "A", To: "D"},
		{From: "D", To: "C"},
	},
}

// SeedDiamond loads the Diamond graph into s.
func SeedDiamond(t *testing.T, s store.Store) {
	t.Helper()
	if err := s.ReplaceAll(context.Background(), Diamond.Persons, Diamond.Connections); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

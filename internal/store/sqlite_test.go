package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/models"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "sixthdegree-store-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := OpenSQLite(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestSQLite_SchemaCreation(t *testing.T) {
	s := testSQLite(t)
	var count int
	require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM persons`).Scan(&count))
	require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM connections`).Scan(&count))
}

func TestSQLite_CreateAndFindPerson(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	created, err := s.CreatePerson(ctx, models.NewPerson{
		Name:         "Kevin Bacon",
		WikipediaURL: "https://en.wikipedia.org/wiki/Kevin_Bacon",
		Category:     strPtr("actor"),
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	found, err := s.FindPersonByName(ctx, "Kevin Bacon")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.NotNil(t, found.Category)
	assert.Equal(t, "actor", *found.Category)
	assert.False(t, found.CreatedAt.IsZero())
}

func TestSQLite_NullCategory(t *testing.T) {
	s := testSQLite(t)
	p, err := s.CreatePerson(context.Background(), models.NewPerson{Name: "Nobody"})
	require.NoError(t, err)
	assert.Nil(t, p.Category)
}

func TestSQLite_FindPersonByName_NotFound(t *testing.T) {
	s := testSQLite(t)
	_, err := s.FindPersonByName(context.Background(), "Ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var pnf *apperr.PersonNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "Ghost", pnf.Name)
}

func TestSQLite_DuplicateName(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	_, err := s.CreatePerson(ctx, models.NewPerson{Name: "Dup"})
	require.NoError(t, err)
	_, err = s.CreatePerson(ctx, models.NewPerson{Name: "Dup"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestSQLite_ListPersonsOrderedByName(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	for _, n := range []string{"Charlie", "Alice", "Bob"} {
		_, err := s.CreatePerson(ctx, models.NewPerson{Name: n})
		require.NoError(t, err)
	}
	persons, err := s.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 3)
	assert.Equal(t, "Alice", persons[0].Name)
	assert.Equal(t, "Bob", persons[1].Name)
	assert.Equal(t, "Charlie", persons[2].Name)
}

func TestSQLite_ConnectionsAndCounts(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	a, _ := s.CreatePerson(ctx, models.NewPerson{Name: "A"})
	b, _ := s.CreatePerson(ctx, models.NewPerson{Name: "B"})

	_, err := s.CreateConnection(ctx, a.ID, b.ID)
	require.NoError(t, err)
	// Duplicate edges are structurally permitted.
	_, err = s.CreateConnection(ctx, a.ID, b.ID)
	require.NoError(t, err)

	conns, err := s.ListConnections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, a.ID, conns[0].FromPersonID)
	assert.Equal(t, b.ID, conns[0].ToPersonID)

	np, err := s.CountPersons(ctx)
	require.NoError(t, err)
	nc, err := s.CountConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), np)
	assert.Equal(t, int64(2), nc)
}

func TestSQLite_ConnectionToUnknownPerson(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	a, _ := s.CreatePerson(ctx, models.NewPerson{Name: "A"})
	_, err := s.CreateConnection(ctx, a.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestSQLite_DeletePersonCascades(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	a, _ := s.CreatePerson(ctx, models.NewPerson{Name: "A"})
	b, _ := s.CreatePerson(ctx, models.NewPerson{Name: "B"})
	_, err := s.CreateConnection(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeletePerson(ctx, b.ID))
	nc, _ := s.CountConnections(ctx)
	assert.Equal(t, int64(0), nc)

	assert.ErrorIs(t, s.DeletePerson(ctx, b.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConnection(ctx, 42), apperr.ErrNotFound)
}

func TestSQLite_ReplaceAll(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	old, _ := s.CreatePerson(ctx, models.NewPerson{Name: "Keep"})
	_, _ = s.CreatePerson(ctx, models.NewPerson{Name: "Drop"})

	err := s.ReplaceAll(ctx,
		[]models.NewPerson{{Name: "Keep", Category: strPtr("x")}, {Name: "New"}},
		[]models.NamedConnection{{From: "Keep", To: "New"}, {From: "New", To: "Keep"}},
	)
	require.NoError(t, err)

	persons, _ := s.ListPersons(ctx)
	require.Len(t, persons, 2)
	assert.Equal(t, "Keep", persons[0].Name)
	assert.Equal(t, old.ID, persons[0].ID, "surviving person keeps its id")
	require.NotNil(t, persons[0].Category)
	assert.Equal(t, "x", *persons[0].Category)

	conns, _ := s.ListConnections(ctx)
	assert.Len(t, conns, 2)
}

func TestSQLite_ReplaceAllUnknownNameRollsBack(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	_, _ = s.CreatePerson(ctx, models.NewPerson{Name: "Existing"})

	err := s.ReplaceAll(ctx,
		[]models.NewPerson{{Name: "A"}},
		[]models.NamedConnection{{From: "A", To: "Missing"}},
	)
	require.ErrorIs(t, err, apperr.ErrInvalidReference)

	persons, _ := s.ListPersons(ctx)
	require.Len(t, persons, 1)
	assert.Equal(t, "Existing", persons[0].Name)
}

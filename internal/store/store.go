// Package store provides the durable person/connection store backing the graph cache.
package store

import (
	"context"
	"fmt"

	"github.com/starford/sixthdegree/internal/models"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Source is the read-only view the graph cache and search service depend on.
type Source interface {
	// ListPersons returns every person ordered by name.
	ListPersons(ctx context.Context) ([]models.Person, error)
	// ListConnections returns every connection ordered by id.
	ListConnections(ctx context.Context) ([]models.Connection, error)
	// FindPersonByName returns *apperr.PersonNotFoundError when no person has that name.
	FindPersonByName(ctx context.Context, name string) (*models.Person, error)
	CountPersons(ctx context.Context) (int64, error)
	CountConnections(ctx context.Context) (int64, error)
}

// Store adds the write side used by the REST API and the seeder.
type Store interface {
	Source

	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	CreatePerson(ctx context.Context, p models.NewPerson) (*models.Person, error)
	DeletePerson(ctx context.Context, id int64) error
	CreateConnection(ctx context.Context, fromID, toID int64) (*models.Connection, error)
	DeleteConnection(ctx context.Context, id int64) error

	// ReplaceAll makes the store hold exactly the given persons and
	// connections. Persons are matched by name so surviving ids stay stable.
	ReplaceAll(ctx context.Context, persons []models.NewPerson, conns []models.NamedConnection) error

	Ping(ctx context.Context) error
	Close() error
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

// Options selects and configures a Store implementation.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
	MaxConns    int32
}

// Open opens the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLite(opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresDSN, opts.MaxConns)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}

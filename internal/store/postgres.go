package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/models"
)

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to PostgreSQL and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanPgPerson(row pgx.Row) (models.Person, error) {
	var p models.Person
	err := row.Scan(&p.ID, &p.Name, &p.WikipediaURL, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPersons returns every person ordered by name.
func (s *Postgres) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list persons: %w", err)
	}
	defer rows.Close()

	out := []models.Person{}
	for rows.Next() {
		p, err := scanPgPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListConnections returns every connection ordered by id.
func (s *Postgres) ListConnections(ctx context.Context) ([]models.Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, from_person_id, to_person_id, created_at FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list connections: %w", err)
	}
	defer rows.Close()

	out := []models.Connection{}
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.FromPersonID, &c.ToPersonID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindPersonByName looks a person up by exact name.
func (s *Postgres) FindPersonByName(ctx context.Context, name string) (*models.Person, error) {
	p, err := scanPgPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.PersonNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("store: find person: %w", err)
	}
	return &p, nil
}

// GetPerson looks a person up by id.
func (s *Postgres) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p, err := scanPgPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get person: %w", err)
	}
	return &p, nil
}

// CountPersons returns the number of persons.
func (s *Postgres) CountPersons(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count persons: %w", err)
	}
	return n, nil
}

// CountConnections returns the number of connections.
func (s *Postgres) CountConnections(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM connections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count connections: %w", err)
	}
	return n, nil
}

// CreatePerson inserts a person. A duplicate name yields apperr.ErrAlreadyExists.
func (s *Postgres) CreatePerson(ctx context.Context, np models.NewPerson) (*models.Person, error) {
	p, err := scanPgPerson(s.pool.QueryRow(ctx, `
		INSERT INTO persons (name, wikipedia_url, category)
		VALUES ($1, $2, $3)
		RETURNING `+personColumns,
		np.Name, np.WikipediaURL, np.Category))
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: create person: %w", err)
	}
	return &p, nil
}

// DeletePerson removes a person and, by cascade, its connections.
func (s *Postgres) DeletePerson(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CreateConnection inserts a directed edge. Unknown endpoints yield apperr.ErrInvalidReference.
func (s *Postgres) CreateConnection(ctx context.Context, fromID, toID int64) (*models.Connection, error) {
	var c models.Connection
	err := s.pool.QueryRow(ctx, `
		INSERT INTO connections (from_person_id, to_person_id)
		VALUES ($1, $2)
		RETURNING id, from_person_id, to_person_id, created_at
	`, fromID, toID).Scan(&c.ID, &c.FromPersonID, &c.ToPersonID, &c.CreatedAt)
	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return nil, apperr.ErrInvalidReference
		}
		return nil, fmt.Errorf("store: create connection: %w", err)
	}
	return &c, nil
}

// DeleteConnection removes one edge.
func (s *Postgres) DeleteConnection(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ReplaceAll rewrites the whole graph inside a single transaction.
func (s *Postgres) ReplaceAll(ctx context.Context, persons []models.NewPerson, conns []models.NamedConnection) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(ctx, `DELETE FROM connections`); err != nil {
		return fmt.Errorf("store: clear connections: %w", err)
	}

	names := make([]string, 0, len(persons))
	batch := &pgx.Batch{}
	for _, p := range persons {
		names = append(names, p.Name)
		batch.Queue(`
			INSERT INTO persons (name, wikipedia_url, category)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET
				wikipedia_url = EXCLUDED.wikipedia_url,
				category      = EXCLUDED.category,
				updated_at    = now()
		`, p.Name, p.WikipediaURL, p.Category)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store: upsert persons: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM persons WHERE NOT (name = ANY($1))`, names); err != nil {
		return fmt.Errorf("store: prune persons: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id, name FROM persons`)
	if err != nil {
		return fmt.Errorf("store: name index: %w", err)
	}
	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		ids[name] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	edges := make([][]any, 0, len(conns))
	for _, c := range conns {
		from, to, err := resolvePair(ids, c)
		if err != nil {
			return err
		}
		edges = append(edges, []any{from, to})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"connections"},
		[]string{"from_person_id", "to_person_id"},
		pgx.CopyFromRows(edges),
	); err != nil {
		return fmt.Errorf("store: insert connections: %w", err)
	}

	return tx.Commit(ctx)
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

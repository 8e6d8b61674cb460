package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/models"
)

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

const personColumns = `id, name, wikipedia_url, category, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (models.Person, error) {
	var (
		p        models.Person
		category sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.WikipediaURL, &category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Person{}, err
	}
	if category.Valid {
		c := category.String
		p.Category = &c
	}
	return p, nil
}

// ListPersons returns every person ordered by name.
func (s *SQLite) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list persons: %w", err)
	}
	defer rows.Close()

	out := []models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListConnections returns every connection ordered by id.
func (s *SQLite) ListConnections(ctx context.Context) ([]models.Connection, error) {
	rows, err := s.conn.QueryContext(ctx,
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
func (s *SQLite) FindPersonByName(ctx context.Context, name string) (*models.Person, error) {
	p, err := scanPerson(s.conn.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.PersonNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("store: find person: %w", err)
	}
	return &p, nil
}

// GetPerson looks a person up by id.
func (s *SQLite) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p, err := scanPerson(s.conn.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get person: %w", err)
	}
	return &p, nil
}

// CountPersons returns the number of persons.
func (s *SQLite) CountPersons(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count persons: %w", err)
	}
	return n, nil
}

// CountConnections returns the number of connections.
func (s *SQLite) CountConnections(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM connections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count connections: %w", err)
	}
	return n, nil
}

// CreatePerson inserts a person. A duplicate name yields apperr.ErrAlreadyExists.
func (s *SQLite) CreatePerson(ctx context.Context, np models.NewPerson) (*models.Person, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO persons (name, wikipedia_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, np.Name, np.WikipediaURL, np.Category, now, now)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintUnique) {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: create person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create person: %w", err)
	}
	return s.GetPerson(ctx, id)
}

// DeletePerson removes a person and, by cascade, its connections.
func (s *SQLite) DeletePerson(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete person: %w", err)
	}
	return requireAffected(res)
}

// CreateConnection inserts a directed edge. Unknown endpoints yield apperr.ErrInvalidReference.
func (s *SQLite) CreateConnection(ctx context.Context, fromID, toID int64) (*models.Connection, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO connections (from_person_id, to_person_id, created_at) VALUES (?, ?, ?)`,
		fromID, toID, now)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return nil, apperr.ErrInvalidReference
		}
		return nil, fmt.Errorf("store: create connection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create connection: %w", err)
	}
	return &models.Connection{ID: id, FromPersonID: fromID, ToPersonID: toID, CreatedAt: now}, nil
}

// DeleteConnection removes one edge.
func (s *SQLite) DeleteConnection(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete connection: %w", err)
	}
	return requireAffected(res)
}

// ReplaceAll rewrites the whole graph inside a single transaction.
func (s *SQLite) ReplaceAll(ctx context.Context, persons []models.NewPerson, conns []models.NamedConnection) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM connections`); err != nil {
		return fmt.Errorf("store: clear connections: %w", err)
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO persons (name, wikipedia_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			wikipedia_url = excluded.wikipedia_url,
			category      = excluded.category,
			updated_at    = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("store: prepare person upsert: %w", err)
	}
	defer stmt.Close()
	for _, p := range persons {
		if _, err := stmt.ExecContext(ctx, p.Name, p.WikipediaURL, p.Category, now, now); err != nil {
			return fmt.Errorf("store: upsert person %q: %w", p.Name, err)
		}
	}

	ids, err := sqliteNameIndex(ctx, tx)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(persons))
	for _, p := range persons {
		keep[p.Name] = struct{}{}
	}
	for name, id := range ids {
		if _, ok := keep[name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete person %q: %w", name, err)
		}
	}

	edge, err := tx.PrepareContext(ctx,
		`INSERT INTO connections (from_person_id, to_person_id, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare connection insert: %w", err)
	}
	defer edge.Close()
	for _, c := range conns {
		from, to, err := resolvePair(ids, c)
		if err != nil {
			return err
		}
		if _, err := edge.ExecContext(ctx, from, to, now); err != nil {
			return fmt.Errorf("store: insert connection: %w", err)
		}
	}

	return tx.Commit()
}

func sqliteNameIndex(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM persons`)
	if err != nil {
		return nil, fmt.Errorf("store: name index: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func resolvePair(ids map[string]int64, c models.NamedConnection) (int64, int64, error) {
	from, ok := ids[c.From]
	if !ok {
		return 0, 0, fmt.Errorf("store: connection from %q: %w", c.From, apperr.ErrInvalidReference)
	}
	to, ok := ids[c.To]
	if !ok {
		return 0, 0, fmt.Errorf("store: connection to %q: %w", c.To, apperr.ErrInvalidReference)
	}
	return from, to, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func isSQLiteConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

package store

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS persons (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	wikipedia_url TEXT NOT NULL DEFAULT '',
	category      TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS connections (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	from_person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	to_person_id   INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_person_id);
CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_person_id);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS persons (
	id            BIGSERIAL PRIMARY KEY,
	name          VARCHAR(255) NOT NULL UNIQUE,
	wikipedia_url VARCHAR(500) NOT NULL DEFAULT '',
	category      VARCHAR(100),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS connections (
	id             BIGSERIAL PRIMARY KEY,
	from_person_id BIGINT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	to_person_id   BIGINT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_person_id);
CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_person_id);
`

// Package stateindex is the durable, per-device SQLite-backed materialized
// view of applied events: the nine logical tables of spec §3, written
// through tx.go and read through queries.go.
package stateindex

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS applied_events (
	event_id        TEXT PRIMARY KEY,
	origin_device   TEXT NOT NULL,
	origin_timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS extensions (
	extension_id TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	source_url   TEXT NOT NULL DEFAULT '',
	added_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS extension_packages (
	extension_id   TEXT PRIMARY KEY,
	version        TEXT NOT NULL,
	source_kind    TEXT NOT NULL,
	source_data    TEXT NOT NULL,
	package_blob   TEXT NOT NULL,
	installed_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS containers (
	container_id TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	color        TEXT NOT NULL,
	icon         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS handlers (
	protocol         TEXT PRIMARY KEY,
	handler_template TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_engines (
	engine_id TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	url       TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value_str  TEXT NOT NULL,
	value_type INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_tabs (
	tab_id      TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	from_device TEXT NOT NULL,
	sent_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vector_clock (
	device_id TEXT PRIMARY KEY,
	counter   INTEGER NOT NULL
);
`

// Open opens (creating if absent) a SQLite-backed state index at path and
// ensures its schema exists.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Index is a handle on one device's state index database.
type Index struct {
	db *sql.DB
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// kex/database/schema.go
package database

// is_approved and likes stay INTEGER in both dialects so every query
// can compare against 0/1 without branching.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS stories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	image_path TEXT,
	is_approved INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS story_tags (
	story_id INTEGER NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (story_id, tag_id)
);
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS stories (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	image_path TEXT,
	is_approved INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tags (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS story_tags (
	story_id INTEGER NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (story_id, tag_id)
);
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// Schema returns the base DDL for a dialect.
func Schema(d Dialect) string {
	if d == DialectPostgres {
		return schemaPostgres
	}
	return schemaSQLite
}

package db

import (
	"database/sql"
	"fmt"
)

// schema is the local client state schema.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
    name     TEXT PRIMARY KEY,
    payload  TEXT NOT NULL,
    saved_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS thumbnails (
    item_id    TEXT PRIMARY KEY,
    source_url TEXT NOT NULL,
    image      BLOB NOT NULL,
    image_mime TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveSnapshot writes a serialized snapshot, replacing the previous one with the same name.
func SaveSnapshot(ctx context.Context, db *sql.DB, name string, payload []byte, savedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO snapshots (name, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		name, string(payload), savedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the payload stored under name, or nil if there is none.
func LoadSnapshot(ctx context.Context, db *sql.DB, name string) ([]byte, error) {
	var payload string
	err := db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE name = ?`, name,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return []byte(payload), nil
}

// DeleteSnapshot removes the snapshot stored under name.
func DeleteSnapshot(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

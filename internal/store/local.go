package store

import (
	"context"
	"database/sql"
	"time"
)

// Local exposes the SQLite-backed client state through the interfaces
// the stores and the session manager depend on.
type Local struct {
	DB *sql.DB
}

// NewLocal wraps an open database.
func NewLocal(db *sql.DB) *Local {
	return &Local{DB: db}
}

func (l *Local) SaveSnapshot(ctx context.Context, name string, payload []byte, savedAt time.Time) error {
	return SaveSnapshot(ctx, l.DB, name, payload, savedAt)
}

func (l *Local) LoadSnapshot(ctx context.Context, name string) ([]byte, error) {
	return LoadSnapshot(ctx, l.DB, name)
}

func (l *Local) DeleteSnapshot(ctx context.Context, name string) error {
	return DeleteSnapshot(ctx, l.DB, name)
}

func (l *Local) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return GetSetting(ctx, l.DB, key)
}

func (l *Local) SetSetting(ctx context.Context, key, value string) error {
	return SetSetting(ctx, l.DB, key, value)
}

func (l *Local) DeleteSetting(ctx context.Context, key string) error {
	return DeleteSetting(ctx, l.DB, key)
}

func (l *Local) SaveThumbnail(ctx context.Context, th Thumbnail) error {
	return SaveThumbnail(ctx, l.DB, th)
}

func (l *Local) GetThumbnail(ctx context.Context, itemID string) (*Thumbnail, error) {
	return GetThumbnail(ctx, l.DB, itemID)
}

func (l *Local) DeleteThumbnail(ctx context.Context, itemID string) error {
	return DeleteThumbnail(ctx, l.DB, itemID)
}

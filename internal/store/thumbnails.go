package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Thumbnail is a locally cached, downscaled copy of an item's image.
type Thumbnail struct {
	ItemID    string
	SourceURL string
	Data      []byte
	MIME      string
}

// SaveThumbnail stores the thumbnail for an item, replacing any previous one.
func SaveThumbnail(ctx context.Context, db *sql.DB, th Thumbnail) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO thumbnails (item_id, source_url, image, image_mime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET
		     source_url = excluded.source_url,
		     image = excluded.image,
		     image_mime = excluded.image_mime,
		     created_at = CURRENT_TIMESTAMP`,
		th.ItemID, th.SourceURL, th.Data, th.MIME,
	)
	if err != nil {
		return fmt.Errorf("saving thumbnail: %w", err)
	}
	return nil
}

// GetThumbnail returns an item's thumbnail, or nil if none is cached.
func GetThumbnail(ctx context.Context, db *sql.DB, itemID string) (*Thumbnail, error) {
	th := &Thumbnail{ItemID: itemID}
	err := db.QueryRowContext(ctx,
		`SELECT source_url, image, image_mime FROM thumbnails WHERE item_id = ?`, itemID,
	).Scan(&th.SourceURL, &th.Data, &th.MIME)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting thumbnail: %w", err)
	}
	return th, nil
}

// DeleteThumbnail removes an item's cached thumbnail.
func DeleteThumbnail(ctx context.Context, db *sql.DB, itemID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM thumbnails WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("deleting thumbnail: %w", err)
	}
	return nil
}

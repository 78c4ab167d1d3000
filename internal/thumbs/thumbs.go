// Package thumbs keeps downscaled copies of item photos in the local database.
package thumbs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/imaging"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// ErrNoImage is returned for items without an image link.
var ErrNoImage = errors.New("item has no image")

// Store persists thumbnails.
type Store interface {
	SaveThumbnail(ctx context.Context, th store.Thumbnail) error
	GetThumbnail(ctx context.Context, itemID string) (*store.Thumbnail, error)
	DeleteThumbnail(ctx context.Context, itemID string) error
}

// Subscriber registers event handlers.
type Subscriber interface {
	Subscribe(topic string, handler events.Handler) (unsubscribe func())
}

// Cache serves item thumbnails, downloading and scaling them on first use.
type Cache struct {
	store       Store
	httpClient  *http.Client
	size        int
	logger      *slog.Logger
	unsubscribe func()
}

// New creates a thumbnail cache. A nil httpClient gets a traced client with
// a 30 second timeout. If bus is non-nil, thumbnails of deleted items are
// dropped as deletions are announced.
func New(st Store, httpClient *http.Client, bus Subscriber, logger *slog.Logger) *Cache {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		store:      st,
		httpClient: httpClient,
		size:       imaging.ThumbnailSize,
		logger:     logger,
	}
	if bus != nil {
		c.unsubscribe = bus.Subscribe(events.TopicItemsInvalidated, c.handleItemsInvalidated)
	}
	return c
}

// Close detaches the cache from the event bus.
func (c *Cache) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Get returns the item's thumbnail. A cached copy is reused while the
// item's image link is unchanged.
func (c *Cache) Get(ctx context.Context, item model.Item) (*store.Thumbnail, error) {
	if item.ImageLink == "" {
		return nil, ErrNoImage
	}

	cached, err := c.store.GetThumbnail(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.SourceURL == item.ImageLink {
		return cached, nil
	}

	res, err := c.download(ctx, item.ImageLink)
	if err != nil {
		return nil, fmt.Errorf("thumbnail for %s: %w", item.ID, err)
	}

	th := store.Thumbnail{
		ItemID:    item.ID,
		SourceURL: item.ImageLink,
		Data:      res.Data,
		MIME:      res.MIME,
	}
	if err := c.store.SaveThumbnail(ctx, th); err != nil {
		return nil, err
	}

	c.logger.Debug("cached thumbnail", "item_id", item.ID, "width", res.Width, "height", res.Height, "bytes", len(res.Data))
	return &th, nil
}

func (c *Cache) download(ctx context.Context, url string) (*imaging.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: unexpected status %d", resp.StatusCode)
	}

	return imaging.Thumbnail(resp.Body, c.size)
}

func (c *Cache) handleItemsInvalidated(ctx context.Context, ev events.Event) error {
	if ev.ItemID == "" {
		return nil
	}
	return c.store.DeleteThumbnail(ctx, ev.ItemID)
}

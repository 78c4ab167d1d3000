// Package wardrobe holds the client-side view of the signed-in user's clothing items.
package wardrobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/garderoba/internal/cache"
	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
)

const storeName = "wardrobe"

// ErrNotFound is returned for operations on an item the store does not hold.
var ErrNotFound = errors.New("item not found")

// API is the subset of the backend client the store needs.
type API interface {
	ListItems(ctx context.Context, token string) ([]model.Item, error)
	AddItem(ctx context.Context, token string, item model.Item) (*model.Item, error)
	DeleteItem(ctx context.Context, token, id string, cascade bool) error
	SetItemFavorite(ctx context.Context, token, id string, favorite bool) (*model.Item, error)
	ItemOutfitCount(ctx context.Context, token, id string) (int, error)
}

// TokenSource supplies the current session's bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Publisher delivers change notifications.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// Config holds the store's collaborators. API and Tokens are required.
type Config struct {
	API       API
	Tokens    TokenSource
	Persister cache.Persister
	Bus       Publisher
	Logger    *slog.Logger
	Metrics   metrics.Recorder
	TTL       time.Duration
	Now       func() time.Time
}

// Store caches the wardrobe in memory and keeps a persisted snapshot of it.
// Mutations are applied locally first; when the backend rejects one the
// store re-fetches the whole list instead of undoing the change piecemeal.
type Store struct {
	api       API
	tokens    TokenSource
	persister cache.Persister
	bus       Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	ttl       time.Duration
	now       func() time.Time

	mu          sync.RWMutex
	items       []model.Item
	lastFetched time.Time
	err         error
}

// New creates an empty store. Call Load to populate it.
func New(cfg Config) *Store {
	s := &Store{
		api:       cfg.API,
		tokens:    cfg.Tokens,
		persister: cfg.Persister,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		ttl:       cfg.TTL,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.ttl <= 0 {
		s.ttl = cache.DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("store", storeName)
	return s
}

// Load hydrates the store from the persisted snapshot if it is younger than
// the TTL, and fetches from the backend otherwise.
func (s *Store) Load(ctx context.Context) error {
	if s.persister != nil {
		env, err := cache.Load[model.Item](ctx, s.persister, cache.WardrobeSnapshot)
		if err != nil {
			s.logger.Warn("ignoring unreadable snapshot", "error", err)
		}
		if env.Fresh(s.now(), s.ttl) {
			s.mu.Lock()
			s.items = env.Entries
			s.lastFetched = env.Timestamp
			s.err = nil
			s.mu.Unlock()

			s.metrics.RecordCacheHit(storeName)
			s.logger.Debug("loaded items from snapshot", "count", len(env.Entries), "fetched_at", env.Timestamp)
			return nil
		}
	}

	s.metrics.RecordCacheMiss(storeName)
	return s.Fetch(ctx)
}

// Fetch replaces the in-memory list with the backend's. On failure the
// previous list is kept and the error is also available from Err.
func (s *Store) Fetch(ctx context.Context) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}

	items, err := s.api.ListItems(ctx, token)
	if err != nil {
		err = fmt.Errorf("fetching items: %w", err)
		s.setErr(err)
		return err
	}

	now := s.now()
	s.mu.Lock()
	s.items = items
	s.lastFetched = now
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("fetched items", "count", len(items))
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicItemsChanged})
	return nil
}

// Items returns a copy of every cached item.
func (s *Store) Items() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// ByType returns the items whose type equals t, ignoring case.
func (s *Store) ByType(t string) []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Item{}
	for _, it := range s.items {
		if strings.EqualFold(it.ItemType, t) {
			out = append(out, it)
		}
	}
	return out
}

// ByID returns the cached item with the given id.
func (s *Store) ByID(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

// Add validates item, creates it on the backend and appends the stored copy.
func (s *Store) Add(ctx context.Context, item model.Item) (*model.Item, error) {
	if err := model.ValidateItem(item); err != nil {
		return nil, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return nil, err
	}

	created, err := s.api.AddItem(ctx, token, item)
	if err != nil {
		err = fmt.Errorf("adding item: %w", err)
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.items = append(s.items, *created)
	s.err = nil
	s.mu.Unlock()

	s.logger.Info("added item", "item_id", created.ID, "item_type", created.ItemType)
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicItemsChanged, ItemID: created.ID})
	return created, nil
}

// Delete removes the item locally, then on the backend. With cascade set the
// backend also deletes every outfit containing the item. On success the
// cross-store invalidation event is published so outfit caches refresh.
func (s *Store) Delete(ctx context.Context, id string, cascade bool) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("deleting item %s: %w", id, ErrNotFound)
	}
	removed := s.items[idx]
	s.items = slices.Delete(slices.Clone(s.items), idx, idx+1)
	s.mu.Unlock()

	undo := func(list []model.Item) []model.Item {
		if slices.ContainsFunc(list, func(v model.Item) bool { return v.ID == id }) {
			return list
		}
		return slices.Insert(slices.Clone(list), min(idx, len(list)), removed)
	}

	if err := s.api.DeleteItem(ctx, token, id, cascade); err != nil {
		err = fmt.Errorf("deleting item %s: %w", id, err)
		s.reconcile(ctx, "delete", undo, err)
		return err
	}

	s.logger.Info("deleted item", "item_id", id, "cascade", cascade)
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicItemsChanged, ItemID: id})
	s.publish(ctx, events.Event{Topic: events.TopicItemsInvalidated, ItemID: id, Cascade: cascade})
	return nil
}

// ToggleFavorite flips the item's favorite flag locally, then asks the
// backend to store the new value. It returns the item as the backend has it.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (model.Item, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return model.Item{}, err
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return model.Item{}, fmt.Errorf("toggling favorite on %s: %w", id, ErrNotFound)
	}
	s.items = slices.Clone(s.items)
	s.items[idx].Favorite = !s.items[idx].Favorite
	want := s.items[idx]
	s.mu.Unlock()

	updated, err := s.api.SetItemFavorite(ctx, token, id, want.Favorite)
	if err != nil {
		err = fmt.Errorf("toggling favorite on %s: %w", id, err)
		s.reconcile(ctx, "favorite", unflip(id, want.Favorite), err)
		return model.Item{}, err
	}

	s.mu.Lock()
	if i := slices.IndexFunc(s.items, func(it model.Item) bool { return it.ID == id }); i >= 0 {
		s.items[i] = *updated
	}
	s.err = nil
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicItemsChanged, ItemID: id})
	return *updated, nil
}

// OutfitCount returns how many saved outfits contain the item, so callers
// can warn before a destructive delete.
func (s *Store) OutfitCount(ctx context.Context, id string) (int, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.api.ItemOutfitCount(ctx, token, id)
	if err != nil {
		return 0, fmt.Errorf("counting outfits for %s: %w", id, err)
	}
	return n, nil
}

// Err returns the error of the last failed operation, or nil after a success.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// LastFetched returns when the cached list was last fetched from the backend.
func (s *Store) LastFetched() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetched
}

// reconcile re-fetches after a rejected optimistic change. If the re-fetch
// fails too, undo reverts just the rejected change on the current list.
func (s *Store) reconcile(ctx context.Context, op string, undo func([]model.Item) []model.Item, cause error) {
	s.metrics.RecordRollback(storeName, op)
	s.logger.Warn("optimistic update rejected, re-fetching", "op", op, "error", cause)

	if err := s.Fetch(ctx); err != nil {
		s.logger.Error("reconciling fetch failed, reverting locally", "op", op, "error", err)
		s.mu.Lock()
		s.items = undo(s.items)
		s.mu.Unlock()
	}
	s.setErr(cause)
}

// unflip restores the favorite flag of id if it still holds the value the
// rejected toggle set.
func unflip(id string, flipped bool) func([]model.Item) []model.Item {
	return func(list []model.Item) []model.Item {
		i := slices.IndexFunc(list, func(v model.Item) bool { return v.ID == id })
		if i < 0 || list[i].Favorite != flipped {
			return list
		}
		list = slices.Clone(list)
		list[i].Favorite = !flipped
		return list
	}
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// persist writes the current list as a snapshot. The snapshot keeps the
// time of the last fetch, so local mutations do not extend its lifetime.
func (s *Store) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}

	s.mu.RLock()
	env := cache.Envelope[model.Item]{Entries: slices.Clone(s.items), Timestamp: s.lastFetched}
	s.mu.RUnlock()

	if env.Timestamp.IsZero() {
		return
	}
	if err := cache.Save(ctx, s.persister, cache.WardrobeSnapshot, env); err != nil {
		s.logger.Warn("failed to persist snapshot", "error", err)
	}
}

func (s *Store) publish(ctx context.Context, ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, ev)
	}
}

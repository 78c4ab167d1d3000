// Package outfits holds the client-side view of the signed-in user's saved
// outfits and keeps it consistent with wardrobe deletions.
package outfits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/erazemk/garderoba/internal/cache"
	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
)

const storeName = "outfits"

// ErrNotFound is returned for operations on an outfit the store does not hold.
var ErrNotFound = errors.New("outfit not found")

// API is the subset of the backend client the store needs.
type API interface {
	ListOutfits(ctx context.Context, token string) ([]model.Outfit, error)
	AddOutfit(ctx context.Context, token string, outfit model.Outfit) (*model.Outfit, error)
	DeleteOutfit(ctx context.Context, token, id string) error
	SetOutfitFavorite(ctx context.Context, token, id string, favorite bool) (*model.Outfit, error)
}

// TokenSource supplies the current session's bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Bus is the event channel the store listens on and publishes to.
type Bus interface {
	Publish(ctx context.Context, ev events.Event)
	Subscribe(topic string, handler events.Handler) (unsubscribe func())
}

// Config holds the store's collaborators. API and Tokens are required.
type Config struct {
	API       API
	Tokens    TokenSource
	Persister cache.Persister
	Bus       Bus
	Logger    *slog.Logger
	Metrics   metrics.Recorder
	TTL       time.Duration
	Now       func() time.Time
}

// Store caches outfits in memory and keeps a persisted snapshot of them.
type Store struct {
	api       API
	tokens    TokenSource
	persister cache.Persister
	bus       Bus
	logger    *slog.Logger
	metrics   metrics.Recorder
	ttl       time.Duration
	now       func() time.Time

	unsubscribe func()

	mu          sync.RWMutex
	outfits     []model.Outfit
	lastFetched time.Time
	err         error
}

// New creates an empty store and, if a bus is configured, subscribes it to
// item invalidations. Call Close to unsubscribe.
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

	if s.bus != nil {
		s.unsubscribe = s.bus.Subscribe(events.TopicItemsInvalidated, s.handleItemsInvalidated)
	}
	return s
}

// Close detaches the store from the event bus.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// handleItemsInvalidated refreshes outfits after an item was deleted,
// regardless of the snapshot's age.
func (s *Store) handleItemsInvalidated(ctx context.Context, ev events.Event) error {
	s.metrics.RecordInvalidation(storeName)
	s.logger.Debug("items invalidated, re-fetching outfits", "item_id", ev.ItemID, "cascade", ev.Cascade)

	err := s.Fetch(ctx)
	if err == nil {
		return nil
	}

	if ev.Cascade && ev.ItemID != "" {
		s.mu.Lock()
		before := len(s.outfits)
		s.outfits = slices.DeleteFunc(slices.Clone(s.outfits), func(o model.Outfit) bool { return o.References(ev.ItemID) })
		dropped := before - len(s.outfits)
		s.mu.Unlock()

		if dropped > 0 {
			s.logger.Info("dropped outfits of deleted item", "item_id", ev.ItemID, "count", dropped)
			s.persist(ctx)
		}
	}
	return err
}

// Load hydrates the store from the persisted snapshot if it is younger than
// the TTL, and fetches from the backend otherwise.
func (s *Store) Load(ctx context.Context) error {
	if s.persister != nil {
		env, err := cache.Load[model.Outfit](ctx, s.persister, cache.OutfitSnapshot)
		if err != nil {
			s.logger.Warn("ignoring unreadable snapshot", "error", err)
		}
		if env.Fresh(s.now(), s.ttl) {
			s.mu.Lock()
			s.outfits = env.Entries
			s.lastFetched = env.Timestamp
			s.err = nil
			s.mu.Unlock()

			s.metrics.RecordCacheHit(storeName)
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

	outfits, err := s.api.ListOutfits(ctx, token)
	if err != nil {
		err = fmt.Errorf("fetching outfits: %w", err)
		s.setErr(err)
		return err
	}

	now := s.now()
	s.mu.Lock()
	s.outfits = outfits
	s.lastFetched = now
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("fetched outfits", "count", len(outfits))
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicOutfitsChanged})
	return nil
}

// Outfits returns a copy of every cached outfit.
func (s *Store) Outfits() []model.Outfit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.outfits)
}

// ByID returns the cached outfit with the given id.
func (s *Store) ByID(id string) (model.Outfit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.outfits {
		if o.ID == id {
			return o, true
		}
	}
	return model.Outfit{}, false
}

// ByOccasion returns the outfits for an occasion, ignoring case.
func (s *Store) ByOccasion(occasion string) []model.Outfit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Outfit{}
	for _, o := range s.outfits {
		if o.IsOccasion(occasion) {
			out = append(out, o)
		}
	}
	return out
}

// DanglingRef is an outfit entry whose item no longer resolves.
type DanglingRef struct {
	OutfitID string
	ItemID   string
}

// Dangling reports outfit entries for which exists returns false.
func (s *Store) Dangling(exists func(itemID string) bool) []DanglingRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []DanglingRef
	for _, o := range s.outfits {
		for _, it := range o.Items {
			if !exists(it.ItemID) {
				refs = append(refs, DanglingRef{OutfitID: o.ID, ItemID: it.ItemID})
			}
		}
	}
	return refs
}

// Add validates the outfit, creates it on the backend and appends the
// stored copy.
func (s *Store) Add(ctx context.Context, outfit model.Outfit) (*model.Outfit, error) {
	if err := model.ValidateOutfit(outfit); err != nil {
		return nil, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return nil, err
	}

	created, err := s.api.AddOutfit(ctx, token, outfit)
	if err != nil {
		err = fmt.Errorf("adding outfit: %w", err)
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.outfits = append(s.outfits, *created)
	s.err = nil
	s.mu.Unlock()

	s.logger.Info("added outfit", "outfit_id", created.ID, "occasion", created.Occasion, "items", len(created.Items))
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicOutfitsChanged})
	return created, nil
}

// Delete removes the outfit locally, then on the backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.outfits, func(o model.Outfit) bool { return o.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("deleting outfit %s: %w", id, ErrNotFound)
	}
	removed := s.outfits[idx]
	s.outfits = slices.Delete(slices.Clone(s.outfits), idx, idx+1)
	s.mu.Unlock()

	undo := func(list []model.Outfit) []model.Outfit {
		if slices.ContainsFunc(list, func(v model.Outfit) bool { return v.ID == id }) {
			return list
		}
		return slices.Insert(slices.Clone(list), min(idx, len(list)), removed)
	}

	if err := s.api.DeleteOutfit(ctx, token, id); err != nil {
		err = fmt.Errorf("deleting outfit %s: %w", id, err)
		s.reconcile(ctx, "delete", undo, err)
		return err
	}

	s.logger.Info("deleted outfit", "outfit_id", id)
	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicOutfitsChanged})
	return nil
}

// ToggleFavorite flips the outfit's favorite flag locally, then asks the
// backend to store the new value.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (model.Outfit, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.setErr(err)
		return model.Outfit{}, err
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.outfits, func(o model.Outfit) bool { return o.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return model.Outfit{}, fmt.Errorf("toggling favorite on %s: %w", id, ErrNotFound)
	}
	s.outfits = slices.Clone(s.outfits)
	s.outfits[idx].Favorite = !s.outfits[idx].Favorite
	want := s.outfits[idx].Favorite
	s.mu.Unlock()

	updated, err := s.api.SetOutfitFavorite(ctx, token, id, want)
	if err != nil {
		err = fmt.Errorf("toggling favorite on %s: %w", id, err)
		s.reconcile(ctx, "favorite", unflip(id, want), err)
		return model.Outfit{}, err
	}

	s.mu.Lock()
	if i := slices.IndexFunc(s.outfits, func(o model.Outfit) bool { return o.ID == id }); i >= 0 {
		s.outfits[i] = *updated
	}
	s.err = nil
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(ctx, events.Event{Topic: events.TopicOutfitsChanged})
	return *updated, nil
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
func (s *Store) reconcile(ctx context.Context, op string, undo func([]model.Outfit) []model.Outfit, cause error) {
	s.metrics.RecordRollback(storeName, op)
	s.logger.Warn("optimistic update rejected, re-fetching", "op", op, "error", cause)

	if err := s.Fetch(ctx); err != nil {
		s.logger.Error("reconciling fetch failed, reverting locally", "op", op, "error", err)
		s.mu.Lock()
		s.outfits = undo(s.outfits)
		s.mu.Unlock()
	}
	s.setErr(cause)
}

// unflip restores the favorite flag of id if it still holds the value the
// rejected toggle set.
func unflip(id string, flipped bool) func([]model.Outfit) []model.Outfit {
	return func(list []model.Outfit) []model.Outfit {
		i := slices.IndexFunc(list, func(v model.Outfit) bool { return v.ID == id })
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

func (s *Store) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}

	s.mu.RLock()
	env := cache.Envelope[model.Outfit]{Entries: slices.Clone(s.outfits), Timestamp: s.lastFetched}
	s.mu.RUnlock()

	if env.Timestamp.IsZero() {
		return
	}
	if err := cache.Save(ctx, s.persister, cache.OutfitSnapshot, env); err != nil {
		s.logger.Warn("failed to persist snapshot", "error", err)
	}
}

func (s *Store) publish(ctx context.Context, ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, ev)
	}
}

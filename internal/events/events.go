// Package events provides the in-process publish/subscribe bus the stores use
// to tell each other about changes without holding references to one another.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	// TopicItemsChanged is published after any successful change to the wardrobe store.
	TopicItemsChanged = "items.changed"
	// TopicItemsInvalidated is published after a wardrobe item is deleted, since
	// outfits referencing it may no longer be valid.
	TopicItemsInvalidated = "items.invalidated"
	// TopicOutfitsChanged is published after any successful change to the outfit store.
	TopicOutfitsChanged = "outfits.changed"
)

// Event is a single notification on the bus.
type Event struct {
	ID        string
	Topic     string
	ItemID    string
	Cascade   bool
	Timestamp time.Time
}

// Handler handles an event. Returned errors are logged.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events to the handlers subscribed to their topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for topic and returns a function that removes it.
// Calling the returned function more than once is safe.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish delivers ev to every handler subscribed to its topic, in
// subscription order, and returns once all of them have run.
// A failing handler does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Topic]))
	copy(subs, b.subs[ev.Topic])
	b.mu.RUnlock()

	b.logger.Debug("publishing event",
		"event_id", ev.ID,
		"topic", ev.Topic,
		"item_id", ev.ItemID,
		"subscribers", len(subs),
	)

	for _, s := range subs {
		if err := s.handler(ctx, ev); err != nil {
			b.logger.Error("event handler failed",
				"event_id", ev.ID,
				"topic", ev.Topic,
				"error", err,
			)
		}
	}
}

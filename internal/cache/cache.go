// Package cache holds the snapshot envelope shared by the client-side stores
// and the persistence abstraction they write it through.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is how long a persisted snapshot stays usable after it was fetched.
const DefaultTTL = 5 * time.Minute

// Snapshot names.
const (
	WardrobeSnapshot = "wardrobe_cache"
	OutfitSnapshot   = "outfit_cache"
)

// Envelope is the persisted form of a store: its entries and when they were fetched.
type Envelope[T any] struct {
	Entries   []T       `json:"entries"`
	Timestamp time.Time `json:"timestamp"`
}

// Fresh reports whether the envelope is younger than ttl at now.
func (e *Envelope[T]) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil || e.Timestamp.IsZero() {
		return false
	}
	return now.Sub(e.Timestamp) < ttl
}

// Persister stores serialized snapshots by name.
// LoadSnapshot returns (nil, nil) when no snapshot exists.
type Persister interface {
	SaveSnapshot(ctx context.Context, name string, payload []byte, savedAt time.Time) error
	LoadSnapshot(ctx context.Context, name string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

// Save serializes env and writes it under name.
func Save[T any](ctx context.Context, p Persister, name string, env Envelope[T]) error {
	if env.Entries == nil {
		env.Entries = []T{}
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", name, err)
	}
	if err := p.SaveSnapshot(ctx, name, payload, env.Timestamp); err != nil {
		return fmt.Errorf("saving snapshot %s: %w", name, err)
	}
	return nil
}

// Load reads the snapshot stored under name. It returns (nil, nil) when none exists.
func Load[T any](ctx context.Context, p Persister, name string) (*Envelope[T], error) {
	payload, err := p.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", name, err)
	}
	if payload == nil {
		return nil, nil
	}

	env := &Envelope[T]{}
	if err := json.Unmarshal(payload, env); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", name, err)
	}
	return env, nil
}

// Package redisstore keeps client state in Redis so several processes on one
// machine can share snapshots and the session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "garderoba:"

// Store implements the snapshot and settings persistence on top of Redis.
// Snapshots expire on the Redis side once they are older than the TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Open connects to Redis at addr and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	slog.Info("connected to redis", "addr", addr)
	return client, nil
}

// New returns a Store using client. A zero ttl keeps snapshots until overwritten.
func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) snapshotKey(name string) string { return s.prefix + "snapshot:" + name }
func (s *Store) settingKey(key string) string   { return s.prefix + "setting:" + key }

// SaveSnapshot writes the payload under name. The expiry is counted from savedAt.
func (s *Store) SaveSnapshot(ctx context.Context, name string, payload []byte, savedAt time.Time) error {
	expiry := time.Duration(0)
	if s.ttl > 0 {
		expiry = s.ttl - time.Since(savedAt)
		if expiry <= 0 {
			return s.DeleteSnapshot(ctx, name)
		}
	}

	if err := s.client.Set(ctx, s.snapshotKey(name), payload, expiry).Err(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the payload stored under name, or nil if there is none.
func (s *Store) LoadSnapshot(ctx context.Context, name string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.snapshotKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return payload, nil
}

// DeleteSnapshot removes the snapshot stored under name.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.snapshotKey(name)).Err(); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// GetSetting returns the value stored under key. The bool is false if the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.settingKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key without expiry.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.settingKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.settingKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

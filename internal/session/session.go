// Package session keeps the signed-in user's bearer token and profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/cache"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// ErrNotAuthenticated is returned when there is no usable session token.
var ErrNotAuthenticated = errors.New("not signed in")

// Settings is the key-value persistence the session is kept in.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*model.SignInResult, error)
}

// Manager signs users in and out and hands the current token to the stores.
type Manager struct {
	api       Authenticator
	settings  Settings
	snapshots cache.Persister
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a Manager. snapshots may be nil; when set, signing out
// or signing in as a different user also drops the cached wardrobe and outfit
// snapshots.
func NewManager(api Authenticator, settings Settings, snapshots cache.Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:       api,
		settings:  settings,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
}

// SignIn authenticates and persists the token and profile.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*model.Profile, error) {
	if err := model.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	res, err := m.api.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("signing in: server returned no access token")
	}

	previous, err := m.Profile(ctx)
	if err != nil {
		m.logger.Warn("ignoring unreadable stored profile", "error", err)
	}
	if previous == nil || previous.UserID != res.UserID {
		if err := m.dropSnapshots(ctx); err != nil {
			return nil, err
		}
	}

	profile := &model.Profile{UserID: res.UserID, Email: email}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}

	if err := m.settings.SetSetting(ctx, store.SettingAccessToken, res.AccessToken); err != nil {
		return nil, err
	}
	if err := m.settings.SetSetting(ctx, store.SettingUserProfile, string(data)); err != nil {
		return nil, err
	}

	m.logger.Info("signed in", "user_id", res.UserID)
	return profile, nil
}

// Token returns the persisted bearer token. It returns ErrNotAuthenticated if
// there is none or if the token's expiry has passed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, ok, err := m.settings.GetSetting(ctx, store.SettingAccessToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", ErrNotAuthenticated
	}
	if auth.Expired(token, m.now()) {
		return "", fmt.Errorf("session expired: %w", ErrNotAuthenticated)
	}
	return token, nil
}

// Profile returns the persisted profile, or nil if nobody is signed in.
func (m *Manager) Profile(ctx context.Context) (*model.Profile, error) {
	raw, ok, err := m.settings.GetSetting(ctx, store.SettingUserProfile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	profile := &model.Profile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return profile, nil
}

// SignOut forgets the token, the profile and the cached snapshots.
func (m *Manager) SignOut(ctx context.Context) error {
	for _, key := range []string{store.SettingAccessToken, store.SettingUserProfile} {
		if err := m.settings.DeleteSetting(ctx, key); err != nil {
			return err
		}
	}

	if err := m.dropSnapshots(ctx); err != nil {
		return err
	}

	m.logger.Info("signed out")
	return nil
}

// dropSnapshots deletes the cached wardrobe and outfit lists, which belong
// to whoever was signed in when they were saved.
func (m *Manager) dropSnapshots(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	for _, name := range []string{cache.WardrobeSnapshot, cache.OutfitSnapshot} {
		if err := m.snapshots.DeleteSnapshot(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

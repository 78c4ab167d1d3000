package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/erazemk/garderoba/internal/cache"
	"github.com/erazemk/garderoba/internal/client"
	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/outfits"
	"github.com/erazemk/garderoba/internal/redisstore"
	"github.com/erazemk/garderoba/internal/session"
	"github.com/erazemk/garderoba/internal/store"
	"github.com/erazemk/garderoba/internal/suggest"
	"github.com/erazemk/garderoba/internal/thumbs"
	"github.com/erazemk/garderoba/internal/wardrobe"
)

// stateStore keeps snapshots and settings.
type stateStore interface {
	cache.Persister
	session.Settings
}

// app wires the stores to one API client, one event bus and one metrics registry.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	bus      *events.Bus
	api      *client.Client
	session  *session.Manager
	wardrobe *wardrobe.Store
	outfits  *outfits.Store
	suggest  *suggest.Service
	thumbs   *thumbs.Cache

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	database, err := openDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { database.Close() })
	local := store.NewLocal(database)

	var state stateStore = local
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		state = redisstore.New(rdb, "garderoba:", cfg.CacheTTL)
		logger.Debug("using redis for cached state", "addr", cfg.RedisAddr)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(a.registry)

	a.bus = events.NewBus(logger)
	a.api = client.New(cfg.APIURL, client.Options{
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		Burst:     cfg.APIRateBurst,
		Logger:    logger,
		Metrics:   rec,
	})
	a.session = session.NewManager(a.api, state, state, logger)

	a.wardrobe = wardrobe.New(wardrobe.Config{
		API:       a.api,
		Tokens:    a.session,
		Persister: state,
		Bus:       a.bus,
		Logger:    logger,
		Metrics:   rec,
		TTL:       cfg.CacheTTL,
	})
	a.outfits = outfits.New(outfits.Config{
		API:       a.api,
		Tokens:    a.session,
		Persister: state,
		Bus:       a.bus,
		Logger:    logger,
		Metrics:   rec,
		TTL:       cfg.CacheTTL,
	})
	a.closers = append(a.closers, a.outfits.Close)

	a.suggest = suggest.NewService(a.api, a.session, a.wardrobe, a.outfits, logger)
	a.thumbs = thumbs.New(local, nil, a.bus, logger)
	a.closers = append(a.closers, a.thumbs.Close)

	return a, nil
}

// Close releases resources in reverse order of acquisition. It is safe to
// call more than once.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return database, nil
}

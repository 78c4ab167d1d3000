package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/metrics"
)

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch", `Usage: garderoba watch [-i <interval>] [-m <host:port>]

  -i, -interval <duration>   how often to check the caches (default: cache TTL)
  -m, -metrics <host:port>   serve Prometheus metrics on /metrics
`)
	interval := a.cfg.CacheTTL
	fs.DurationVar(&interval, "interval", interval, "")
	fs.DurationVar(&interval, "i", interval, "")
	addr := a.cfg.MetricsAddr
	fs.StringVar(&addr, "metrics", addr, "")
	fs.StringVar(&addr, "m", addr, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	if interval <= 0 {
		interval = a.cfg.CacheTTL
	}

	for _, topic := range []string{events.TopicItemsChanged, events.TopicItemsInvalidated, events.TopicOutfitsChanged} {
		unsubscribe := a.bus.Subscribe(topic, func(_ context.Context, ev events.Event) error {
			a.logger.Info("cache updated", "topic", ev.Topic, "item_id", ev.ItemID)
			return nil
		})
		defer unsubscribe()
	}

	if addr != "" {
		server := &http.Server{
			Addr:              addr,
			Handler:           metrics.Handler(a.registry),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			a.logger.Info("metrics server started", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("metrics server forced to shutdown", "error", err)
			}
		}()
	}

	a.refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutdown signal received, stopping watch")
			return nil
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

// refresh loads both stores, fetching whichever snapshot has gone stale.
func (a *app) refresh(ctx context.Context) {
	if err := a.wardrobe.Load(ctx); err != nil {
		a.logger.Warn("refreshing items failed", "error", err)
	}
	if err := a.outfits.Load(ctx); err != nil {
		a.logger.Warn("refreshing outfits failed", "error", err)
	}
}

package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/garderoba/internal/apitest"
	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/model"
)

func newTestApp(t *testing.T) (*app, *apitest.Server, *bytes.Buffer) {
	t.Helper()

	srv := apitest.New(t)
	cfg := &config.Config{
		APIURL:   srv.URL,
		DBPath:   ":memory:",
		CacheTTL: 5 * time.Minute,
	}

	a, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)

	var out bytes.Buffer
	prev := stdout
	stdout = &out
	t.Cleanup(func() { stdout = prev })
	return a, srv, &out
}

func TestLoginAndListItems(t *testing.T) {
	a, srv, out := newTestApp(t)
	uid := srv.AddUser("ana@example.com", "secret")
	srv.SeedItem(uid, model.Item{ItemType: "tops", SubType: "blouse", Color: "white"})
	ctx := context.Background()

	t.Setenv("GARDEROBA_PASSWORD", "secret")
	if err := a.run(ctx, "login", []string{"-e", "ana@example.com"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out.String(), "Signed in as ana@example.com") {
		t.Errorf("unexpected login output: %q", out.String())
	}

	out.Reset()
	if err := a.run(ctx, "items", nil); err != nil {
		t.Fatalf("items: %v", err)
	}
	if !strings.Contains(out.String(), "blouse") {
		t.Errorf("expected blouse in listing, got %q", out.String())
	}
}

func TestItemsRequireLogin(t *testing.T) {
	a, srv, _ := newTestApp(t)

	err := a.run(context.Background(), "items", []string{"list"})
	if err == nil {
		t.Fatal("expected error without a session")
	}
	if got := srv.Requests(apitest.RouteListItems); got != 0 {
		t.Errorf("expected no API request, got %d", got)
	}
}

func TestDeleteItemWithCascade(t *testing.T) {
	a, srv, out := newTestApp(t)
	uid := srv.AddUser("ana@example.com", "secret")
	shirt := srv.SeedItem(uid, model.Item{ItemType: "tops", SubType: "shirt"})
	srv.SeedOutfit(uid, model.Outfit{Occasion: "work", Items: []model.OutfitItem{{ItemID: shirt.ID}}})
	ctx := context.Background()

	t.Setenv("GARDEROBA_PASSWORD", "secret")
	if err := a.run(ctx, "login", []string{"-e", "ana@example.com"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := a.run(ctx, "items", []string{"delete", "-y", "-c", shirt.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted item "+shirt.ID) {
		t.Errorf("unexpected output: %q", out.String())
	}
	if n := len(a.outfits.Outfits()); n != 0 {
		t.Errorf("expected outfit cache emptied by cascade, got %d", n)
	}
	if n := len(srv.Outfits(uid)); n != 0 {
		t.Errorf("expected server outfits deleted, got %d", n)
	}
}

func TestUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t)
	if err := a.run(context.Background(), "dance", nil); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestLevelRouter(t *testing.T) {
	var outBuf, errBuf bytes.Buffer
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(&levelRouter{
		level:  slog.LevelInfo,
		stdout: slog.NewTextHandler(&outBuf, opts),
		stderr: slog.NewTextHandler(&errBuf, opts),
	})

	logger.Debug("hidden")
	logger.Warn("careful")
	logger.Error("broken")

	if strings.Contains(outBuf.String(), "hidden") {
		t.Error("debug message should be filtered")
	}
	if !strings.Contains(outBuf.String(), "careful") || strings.Contains(outBuf.String(), "broken") {
		t.Errorf("unexpected stdout: %q", outBuf.String())
	}
	if !strings.Contains(errBuf.String(), "broken") {
		t.Errorf("expected error on stderr, got %q", errBuf.String())
	}
}

package outfits

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/garderoba/internal/apitest"
	"github.com/erazemk/garderoba/internal/cache"
	"github.com/erazemk/garderoba/internal/client"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/events"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
	"github.com/erazemk/garderoba/internal/wardrobe"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type countingRecorder struct {
	metrics.Nop
	mu            sync.Mutex
	invalidations int
	rollbacks     int
}

func (r *countingRecorder) RecordInvalidation(string) {
	r.mu.Lock()
	r.invalidations++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordRollback(string, string) {
	r.mu.Lock()
	r.rollbacks++
	r.mu.Unlock()
}

// hookAPI runs a callback when the store reaches the backend, before the
// request is sent.
type hookAPI struct {
	API
	beforeDelete   func()
	beforeFavorite func()
}

func (h *hookAPI) DeleteOutfit(ctx context.Context, token, id string) error {
	if h.beforeDelete != nil {
		h.beforeDelete()
	}
	return h.API.DeleteOutfit(ctx, token, id)
}

func (h *hookAPI) SetOutfitFavorite(ctx context.Context, token, id string, favorite bool) (*model.Outfit, error) {
	if h.beforeFavorite != nil {
		h.beforeFavorite()
	}
	return h.API.SetOutfitFavorite(ctx, token, id, favorite)
}

type harness struct {
	srv      *apitest.Server
	uid      string
	api      *client.Client
	local    *store.Local
	bus      *events.Bus
	recorder *countingRecorder
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := apitest.New(t)
	h := &harness{
		srv:      srv,
		api:      client.New(srv.URL, client.Options{}),
		local:    store.NewLocal(db.NewTestDB(t)),
		bus:      events.NewBus(nil),
		recorder: &countingRecorder{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.uid = srv.AddUser("ana@example.com", "password")
	return h
}

func (h *harness) config() Config {
	return Config{
		API:       h.api,
		Tokens:    staticToken(h.srv.Token(h.uid)),
		Persister: h.local,
		Bus:       h.bus,
		Metrics:   h.recorder,
		Now:       func() time.Time { return h.now },
	}
}

func (h *harness) wardrobe() *wardrobe.Store {
	return wardrobe.New(wardrobe.Config{
		API:       h.api,
		Tokens:    staticToken(h.srv.Token(h.uid)),
		Persister: h.local,
		Bus:       h.bus,
		Now:       func() time.Time { return h.now },
	})
}

func (h *harness) seedOutfit(occasion string, itemIDs ...string) model.Outfit {
	o := model.Outfit{Occasion: occasion}
	for _, id := range itemIDs {
		o.Items = append(o.Items, model.OutfitItem{ItemID: id})
	}
	return h.srv.SeedOutfit(h.uid, o)
}

func TestFetchAndQuery(t *testing.T) {
	h := newHarness(t)
	h.seedOutfit("Work", "a", "b")
	h.seedOutfit("party", "c")
	s := New(h.config())
	defer s.Close()

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := len(s.Outfits()); got != 2 {
		t.Fatalf("expected 2 outfits, got %d", got)
	}
	if got := len(s.ByOccasion("WORK")); got != 1 {
		t.Errorf("expected 1 work outfit, got %d", got)
	}
	if none := s.ByOccasion("wedding"); none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestLoadFreshSnapshotSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	h.seedOutfit("work", "a")
	ctx := context.Background()

	first := New(h.config())
	if err := first.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	first.Close()

	h.now = h.now.Add(time.Minute)
	s := New(h.config())
	defer s.Close()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := h.srv.Requests(apitest.RouteListOutfits); got != 1 {
		t.Errorf("expected snapshot to be used, got %d list requests", got)
	}

	h.now = h.now.Add(cache.DefaultTTL)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := h.srv.Requests(apitest.RouteListOutfits); got != 2 {
		t.Errorf("expected one fetch for a stale snapshot, got %d list requests", got)
	}
}

func TestAddValidation(t *testing.T) {
	h := newHarness(t)
	s := New(h.config())
	defer s.Close()
	ctx := context.Background()

	cases := []model.Outfit{
		{Occasion: "work"},
		{Items: []model.OutfitItem{{ItemID: "a"}}},
		{Occasion: "work", Items: []model.OutfitItem{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}, {ItemID: "d"}, {ItemID: "e"}}},
	}
	for i, o := range cases {
		var verr *model.ValidationError
		if _, err := s.Add(ctx, o); !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
	if got := h.srv.Requests(apitest.RouteAddOutfit); got != 0 {
		t.Errorf("expected no requests, got %d", got)
	}

	created, err := s.Add(ctx, model.Outfit{Occasion: "work", Items: []model.OutfitItem{{ItemID: "a"}}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok := s.ByID(created.ID); !ok {
		t.Error("expected created outfit in store")
	}
}

func TestDeleteFailureReconciles(t *testing.T) {
	h := newHarness(t)
	o := h.seedOutfit("work", "a")
	s := New(h.config())
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	h.srv.FailOnce(apitest.RouteDeleteOutfit, http.StatusInternalServerError, "nope")
	if err := s.Delete(ctx, o.ID); err == nil {
		t.Fatal("expected delete to fail")
	}
	if _, ok := s.ByID(o.ID); !ok {
		t.Error("expected outfit back after reconciliation")
	}
	if h.recorder.rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %d", h.recorder.rollbacks)
	}

	if err := s.Delete(ctx, o.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.ByID(o.ID); ok {
		t.Error("expected outfit gone")
	}
}

func TestToggleFavorite(t *testing.T) {
	h := newHarness(t)
	o := h.seedOutfit("work", "a")
	s := New(h.config())
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	updated, err := s.ToggleFavorite(ctx, o.ID)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !updated.Favorite || !h.srv.Outfits(h.uid)[0].Favorite {
		t.Error("expected outfit to be a favorite locally and on the server")
	}
	if _, err := s.ToggleFavorite(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCascadeDeleteRefreshesOutfits(t *testing.T) {
	h := newHarness(t)
	shirt := h.srv.SeedItem(h.uid, model.Item{ItemType: "tops", SubType: "shirt"})
	jeans := h.srv.SeedItem(h.uid, model.Item{ItemType: "bottoms", SubType: "jeans"})
	h.seedOutfit("work", shirt.ID, jeans.ID)
	keep := h.seedOutfit("casual", jeans.ID)

	items := h.wardrobe()
	outfits := New(h.config())
	defer outfits.Close()
	ctx := context.Background()

	if err := items.Fetch(ctx); err != nil {
		t.Fatalf("items Fetch: %v", err)
	}
	if err := outfits.Fetch(ctx); err != nil {
		t.Fatalf("outfits Fetch: %v", err)
	}

	if err := items.Delete(ctx, shirt.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := outfits.Outfits()
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("expected only %s left, got %+v", keep.ID, got)
	}
	for _, o := range got {
		if o.References(shirt.ID) {
			t.Errorf("outfit %s still references deleted item", o.ID)
		}
	}
	if h.recorder.invalidations != 1 {
		t.Errorf("expected 1 invalidation, got %d", h.recorder.invalidations)
	}
}

func TestCascadeDeleteDropsLocallyWhenRefreshFails(t *testing.T) {
	h := newHarness(t)
	shirt := h.srv.SeedItem(h.uid, model.Item{ItemType: "tops", SubType: "shirt"})
	h.seedOutfit("work", shirt.ID)
	h.seedOutfit("casual", "other")

	items := h.wardrobe()
	outfits := New(h.config())
	defer outfits.Close()
	ctx := context.Background()

	if err := items.Fetch(ctx); err != nil {
		t.Fatalf("items Fetch: %v", err)
	}
	if err := outfits.Fetch(ctx); err != nil {
		t.Fatalf("outfits Fetch: %v", err)
	}

	h.srv.Fail(apitest.RouteListOutfits, http.StatusServiceUnavailable, "down")
	if err := items.Delete(ctx, shirt.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, o := range outfits.Outfits() {
		if o.References(shirt.ID) {
			t.Errorf("outfit %s still references deleted item", o.ID)
		}
	}
	if got := len(outfits.Outfits()); got != 1 {
		t.Errorf("expected 1 outfit left, got %d", got)
	}
	if outfits.Err() == nil {
		t.Error("expected Err to report the failed refresh")
	}
}

func TestCloseStopsInvalidation(t *testing.T) {
	h := newHarness(t)
	s := New(h.config())
	s.Close()
	s.Close()

	if n := h.bus.Subscribers(events.TopicItemsInvalidated); n != 0 {
		t.Errorf("expected no subscribers after Close, got %d", n)
	}
}

func TestDangling(t *testing.T) {
	h := newHarness(t)
	o := h.seedOutfit("work", "a", "gone")
	s := New(h.config())
	defer s.Close()

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	refs := s.Dangling(func(id string) bool { return id == "a" })
	if len(refs) != 1 || refs[0].OutfitID != o.ID || refs[0].ItemID != "gone" {
		t.Errorf("unexpected dangling refs: %+v", refs)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedOutfit("work", "a", "b")
	h.seedOutfit("party", "c")
	s := New(h.config())
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	first := s.Outfits()
	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if second := s.Outfits(); !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive fetches differ:\n%+v\n%+v", first, second)
	}
}

func TestDeleteRemovesBeforeBackendAnswers(t *testing.T) {
	h := newHarness(t)
	work := h.seedOutfit("work", "a")
	h.seedOutfit("party", "b")
	api := &hookAPI{API: h.api}
	cfg := h.config()
	cfg.API = api
	s := New(cfg)
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	calls := 0
	api.beforeDelete = func() {
		calls++
		if _, ok := s.ByID(work.ID); ok {
			t.Error("expected outfit removed before the backend answers")
		}
		if got := len(s.Outfits()); got != 1 {
			t.Errorf("expected 1 outfit while the request is pending, got %d", got)
		}
	}

	if err := s.Delete(ctx, work.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 delete request, got %d", calls)
	}
}

func TestToggleFavoriteFlipsBeforeBackendAnswers(t *testing.T) {
	h := newHarness(t)
	work := h.seedOutfit("work", "a")
	api := &hookAPI{API: h.api}
	cfg := h.config()
	cfg.API = api
	s := New(cfg)
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	api.beforeFavorite = func() {
		o, ok := s.ByID(work.ID)
		if !ok || !o.Favorite {
			t.Errorf("expected favorite flipped before the backend answers, got %+v", o)
		}
	}

	if _, err := s.ToggleFavorite(ctx, work.ID); err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if o, _ := s.ByID(work.ID); !o.Favorite {
		t.Error("expected exactly one flip")
	}
}

func TestDeleteFailureOfflineKeepsConcurrentAdd(t *testing.T) {
	h := newHarness(t)
	work := h.seedOutfit("work", "a")
	api := &hookAPI{API: h.api}
	cfg := h.config()
	cfg.API = api
	s := New(cfg)
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var party *model.Outfit
	api.beforeDelete = func() {
		var err error
		party, err = s.Add(ctx, model.Outfit{Occasion: "party", Items: []model.OutfitItem{{ItemID: "b"}}})
		if err != nil {
			t.Errorf("Add: %v", err)
		}
		h.srv.Fail(apitest.RouteListOutfits, http.StatusBadGateway, "offline")
	}
	h.srv.Fail(apitest.RouteDeleteOutfit, http.StatusBadGateway, "offline")

	if err := s.Delete(ctx, work.ID); err == nil {
		t.Fatal("expected delete to fail")
	}

	got := s.Outfits()
	if len(got) != 2 || got[0].ID != work.ID {
		t.Fatalf("expected outfit restored in place next to the new one, got %+v", got)
	}
	if party == nil || got[1].ID != party.ID {
		t.Errorf("expected outfit added meanwhile to survive, got %+v", got)
	}
}

func TestToggleFavoriteFailureOfflineRevertsOnlyThatOutfit(t *testing.T) {
	h := newHarness(t)
	work := h.seedOutfit("work", "a")
	party := h.seedOutfit("party", "b")
	api := &hookAPI{API: h.api}
	cfg := h.config()
	cfg.API = api
	s := New(cfg)
	defer s.Close()
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := s.ToggleFavorite(ctx, party.ID); err != nil {
		t.Fatalf("ToggleFavorite party: %v", err)
	}

	api.beforeFavorite = func() {
		h.srv.Fail(apitest.RouteFavoriteOutfit, http.StatusBadGateway, "offline")
		h.srv.Fail(apitest.RouteListOutfits, http.StatusBadGateway, "offline")
	}
	if _, err := s.ToggleFavorite(ctx, work.ID); err == nil {
		t.Fatal("expected toggle to fail")
	}

	if o, _ := s.ByID(work.ID); o.Favorite {
		t.Error("expected rejected favorite reverted")
	}
	if o, _ := s.ByID(party.ID); !o.Favorite {
		t.Error("expected earlier favorite kept")
	}
}

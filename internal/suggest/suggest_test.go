package suggest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erazemk/garderoba/internal/apitest"
	"github.com/erazemk/garderoba/internal/client"
	"github.com/erazemk/garderoba/internal/model"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type mapWardrobe map[string]model.Item

func (m mapWardrobe) ByID(id string) (model.Item, bool) {
	it, ok := m[id]
	return it, ok
}

type recordingSaver struct {
	saved []model.Outfit
}

func (r *recordingSaver) Add(_ context.Context, o model.Outfit) (*model.Outfit, error) {
	if err := model.ValidateOutfit(o); err != nil {
		return nil, err
	}
	o.ID = "saved"
	r.saved = append(r.saved, o)
	return &o, nil
}

func setup(t *testing.T) (*apitest.Server, string, mapWardrobe, *recordingSaver, *Service) {
	t.Helper()
	srv := apitest.New(t)
	uid := srv.AddUser("ana@example.com", "password")

	wardrobe := mapWardrobe{}
	for _, it := range []model.Item{
		{ItemType: "tops", SubType: "shirt"},
		{ItemType: "bottoms", SubType: "chinos"},
		{ItemType: "shoes", SubType: "loafers"},
	} {
		seeded := srv.SeedItem(uid, it)
		wardrobe[seeded.ID] = seeded
	}

	saver := &recordingSaver{}
	svc := NewService(client.New(srv.URL, client.Options{}), staticToken(srv.Token(uid)), wardrobe, saver, nil)
	return srv, uid, wardrobe, saver, svc
}

func TestGenerateResolvesItems(t *testing.T) {
	srv, _, _, _, svc := setup(t)
	srv.SetWeather(model.Weather{Temperature: 7, Condition: "Rain"})

	sug, err := svc.Generate(context.Background(), "work")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(sug.Items) != 3 || len(sug.Unresolved) != 0 {
		t.Errorf("expected 3 resolved items, got %d resolved and %v unresolved", len(sug.Items), sug.Unresolved)
	}
	if sug.Weather.Condition != "Rain" {
		t.Errorf("expected weather to be carried, got %+v", sug.Weather)
	}
	if sug.Outfit.Occasion != "work" || sug.Outfit.Description == "" {
		t.Errorf("unexpected outfit: %+v", sug.Outfit)
	}
}

func TestGenerateRequiresOccasion(t *testing.T) {
	srv, _, _, _, svc := setup(t)

	var verr *model.ValidationError
	if _, err := svc.Generate(context.Background(), "  "); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := srv.Requests(apitest.RouteWeather); got != 0 {
		t.Errorf("expected no weather request, got %d", got)
	}
}

func TestGenerateWeatherFailure(t *testing.T) {
	srv, _, _, _, svc := setup(t)
	srv.Fail(apitest.RouteWeather, http.StatusBadGateway, "weather service down")

	_, err := svc.Generate(context.Background(), "work")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected weather APIError, got %v", err)
	}
	if got := srv.Requests(apitest.RouteGenerate); got != 0 {
		t.Errorf("expected no generate request, got %d", got)
	}
}

func TestSaveSuggestion(t *testing.T) {
	_, _, _, saver, svc := setup(t)
	ctx := context.Background()

	sug, err := svc.Generate(ctx, "work")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	saved, err := svc.Save(ctx, sug)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Occasion != "work" || len(saved.Items) != 3 {
		t.Errorf("unexpected saved outfit: %+v", saved)
	}
	if len(saver.saved) != 1 {
		t.Errorf("expected 1 saved outfit, got %d", len(saver.saved))
	}
}

func TestSaveRejectsUnresolved(t *testing.T) {
	srv, _, _, saver, svc := setup(t)
	srv.SetGenerated(&model.GeneratedOutfit{
		Items:       []model.OutfitItem{{ItemID: "ghost"}},
		Description: "mystery",
	})
	ctx := context.Background()

	sug, err := svc.Generate(ctx, "party")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(sug.Unresolved) != 1 || sug.Unresolved[0] != "ghost" {
		t.Fatalf("expected ghost unresolved, got %v", sug.Unresolved)
	}
	if _, err := svc.Save(ctx, sug); !errors.Is(err, ErrUnresolvedItems) {
		t.Errorf("expected ErrUnresolvedItems, got %v", err)
	}
	if len(saver.saved) != 0 {
		t.Error("expected nothing saved")
	}
}

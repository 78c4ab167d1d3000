// Package suggest asks the backend for an outfit that fits the occasion and
// the current weather, and ties the answer back to the cached wardrobe.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/garderoba/internal/model"
)

// ErrUnresolvedItems is returned by Save when the suggestion names items
// that are not in the wardrobe.
var ErrUnresolvedItems = errors.New("suggestion references unknown items")

// API is the subset of the backend client used for suggestions.
type API interface {
	Weather(ctx context.Context, token string) (*model.Weather, error)
	Generate(ctx context.Context, token string, req model.GenerateRequest) (*model.GeneratedOutfit, error)
}

// TokenSource supplies the current session's bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Wardrobe resolves item ids against the cached wardrobe.
type Wardrobe interface {
	ByID(id string) (model.Item, bool)
}

// OutfitSaver stores accepted suggestions.
type OutfitSaver interface {
	Add(ctx context.Context, outfit model.Outfit) (*model.Outfit, error)
}

// Suggestion is a generated outfit with its items looked up locally.
type Suggestion struct {
	Outfit     model.GeneratedOutfit
	Weather    model.Weather
	Items      []model.Item
	Unresolved []string
}

// Service generates and saves outfit suggestions.
type Service struct {
	api      API
	tokens   TokenSource
	wardrobe Wardrobe
	outfits  OutfitSaver
	logger   *slog.Logger
}

// NewService creates a suggestion service.
func NewService(api API, tokens TokenSource, wardrobe Wardrobe, outfits OutfitSaver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, tokens: tokens, wardrobe: wardrobe, outfits: outfits, logger: logger}
}

// Generate fetches the current weather and asks the backend for an outfit
// for the occasion.
func (s *Service) Generate(ctx context.Context, occasion string) (*Suggestion, error) {
	occasion = strings.TrimSpace(occasion)
	if occasion == "" {
		return nil, &model.ValidationError{Fields: []string{"occasion"}, Reason: "required"}
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	weather, err := s.api.Weather(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}

	generated, err := s.api.Generate(ctx, token, model.GenerateRequest{Occasion: occasion, Weather: *weather})
	if err != nil {
		return nil, fmt.Errorf("generating outfit: %w", err)
	}
	if generated.Occasion == "" {
		generated.Occasion = occasion
	}

	sug := &Suggestion{Outfit: *generated, Weather: *weather}
	for _, ref := range generated.Items {
		if it, ok := s.wardrobe.ByID(ref.ItemID); ok {
			sug.Items = append(sug.Items, it)
		} else {
			sug.Unresolved = append(sug.Unresolved, ref.ItemID)
		}
	}

	if len(sug.Unresolved) > 0 {
		s.logger.Warn("suggestion references unknown items", "occasion", occasion, "unresolved", sug.Unresolved)
	}
	s.logger.Info("generated outfit", "occasion", occasion, "items", len(generated.Items),
		"temperature", weather.Temperature, "condition", weather.Condition)
	return sug, nil
}

// Save stores the suggestion as an outfit.
func (s *Service) Save(ctx context.Context, sug *Suggestion) (*model.Outfit, error) {
	if len(sug.Unresolved) > 0 {
		return nil, fmt.Errorf("saving suggestion: %w: %s", ErrUnresolvedItems, strings.Join(sug.Unresolved, ", "))
	}

	outfit := model.Outfit{Occasion: sug.Outfit.Occasion}
	for _, it := range sug.Items {
		outfit.Items = append(outfit.Items, model.OutfitItem{ItemID: it.ID, Type: it.ItemType})
	}
	return s.outfits.Add(ctx, outfit)
}

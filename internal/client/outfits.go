package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/erazemk/garderoba/internal/model"
)

type addOutfitRequest struct {
	Items    []model.OutfitItem `json:"items"`
	Occasion string             `json:"occasion"`
}

// ListOutfits returns every saved outfit of the signed-in user.
func (c *Client) ListOutfits(ctx context.Context, token string) ([]model.Outfit, error) {
	var outfits []model.Outfit
	if err := c.do(ctx, "list_outfits", http.MethodGet, "/outfits", token, nil, &outfits); err != nil {
		return nil, err
	}
	if outfits == nil {
		outfits = []model.Outfit{}
	}
	return outfits, nil
}

// AddOutfit saves an outfit and returns it as stored by the server.
func (c *Client) AddOutfit(ctx context.Context, token string, outfit model.Outfit) (*model.Outfit, error) {
	req := addOutfitRequest{Items: outfit.Items, Occasion: outfit.Occasion}
	var created model.Outfit
	if err := c.do(ctx, "add_outfit", http.MethodPost, "/outfits", token, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteOutfit deletes a saved outfit.
func (c *Client) DeleteOutfit(ctx context.Context, token, id string) error {
	return c.do(ctx, "delete_outfit", http.MethodDelete, "/outfits/"+url.PathEscape(id), token, nil, nil)
}

// SetOutfitFavorite sets an outfit's favorite flag and returns the updated outfit.
func (c *Client) SetOutfitFavorite(ctx context.Context, token, id string, favorite bool) (*model.Outfit, error) {
	var updated model.Outfit
	path := "/outfits/" + url.PathEscape(id) + "/favorite"
	if err := c.do(ctx, "favorite_outfit", http.MethodPut, path, token, favoriteRequest{Favorite: favorite}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Generate asks the backend to put together an outfit for the occasion and weather.
func (c *Client) Generate(ctx context.Context, token string, req model.GenerateRequest) (*model.GeneratedOutfit, error) {
	var generated model.GeneratedOutfit
	if err := c.do(ctx, "generate_outfit", http.MethodPost, "/chat/generate", token, req, &generated); err != nil {
		return nil, err
	}
	return &generated, nil
}

// Weather returns the current conditions for the signed-in user.
func (c *Client) Weather(ctx context.Context, token string) (*model.Weather, error) {
	var w model.Weather
	if err := c.do(ctx, "weather", http.MethodGet, "/weather", token, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/garderoba/internal/model"
)

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

type countResponse struct {
	Count int `json:"count"`
}

// SignIn exchanges credentials for an access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.SignInResult, error) {
	req := map[string]string{"email": email, "password": password}
	var res model.SignInResult
	if err := c.do(ctx, "sign_in", http.MethodPost, "/auth/signin", "", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListItems returns every wardrobe item of the signed-in user.
func (c *Client) ListItems(ctx context.Context, token string) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, "list_items", http.MethodGet, "/wardrobe/items", token, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// AddItem creates an item and returns it as stored by the server.
func (c *Client) AddItem(ctx context.Context, token string, item model.Item) (*model.Item, error) {
	var created model.Item
	if err := c.do(ctx, "add_item", http.MethodPost, "/wardrobe/items", token, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteItem deletes an item. With cascade set, outfits containing it are deleted too.
func (c *Client) DeleteItem(ctx context.Context, token, id string, cascade bool) error {
	path := "/wardrobe/items/" + url.PathEscape(id) + "?cascade=" + strconv.FormatBool(cascade)
	return c.do(ctx, "delete_item", http.MethodDelete, path, token, nil, nil)
}

// SetItemFavorite sets an item's favorite flag and returns the updated item.
func (c *Client) SetItemFavorite(ctx context.Context, token, id string, favorite bool) (*model.Item, error) {
	var updated model.Item
	path := "/wardrobe/items/" + url.PathEscape(id) + "/favorite"
	if err := c.do(ctx, "favorite_item", http.MethodPut, path, token, favoriteRequest{Favorite: favorite}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ItemOutfitCount returns how many saved outfits contain the item.
func (c *Client) ItemOutfitCount(ctx context.Context, token, id string) (int, error) {
	var res countResponse
	path := "/wardrobe/items/" + url.PathEscape(id) + "/outfits"
	if err := c.do(ctx, "item_outfit_count", http.MethodGet, path, token, nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

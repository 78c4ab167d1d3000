package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Outfit limits.
const (
	MinOutfitItems = 1
	MaxOutfitItems = 4
)

// OutfitItem references a wardrobe item from an outfit.
type OutfitItem struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type,omitempty"`
}

// UnmarshalJSON accepts the reference as either "item_id" or "id".
func (o *OutfitItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		ItemID string `json:"item_id"`
		ID     string `json:"id"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.ItemID = aux.ItemID
	if o.ItemID == "" {
		o.ItemID = aux.ID
	}
	o.Type = aux.Type
	return nil
}

// Outfit is a saved combination of wardrobe items for an occasion.
type Outfit struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Items     []OutfitItem `json:"items"`
	Occasion  string       `json:"occasion"`
	Favorite  bool         `json:"favorite"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
}

// UnmarshalJSON accepts both "favorite" and "favourite" for the favorite
// flag; "favorite" wins when both are present.
func (o *Outfit) UnmarshalJSON(data []byte) error {
	type plain Outfit
	aux := struct {
		*plain
		Favorite  *bool `json:"favorite"`
		Favourite *bool `json:"favourite"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Favorite != nil:
		o.Favorite = *aux.Favorite
	case aux.Favourite != nil:
		o.Favorite = *aux.Favourite
	}
	return nil
}

// References reports whether the outfit contains the given item.
func (o Outfit) References(itemID string) bool {
	for _, it := range o.Items {
		if it.ItemID == itemID {
			return true
		}
	}
	return false
}

// IsOccasion reports whether the outfit's occasion matches, ignoring case.
func (o Outfit) IsOccasion(occasion string) bool {
	return strings.EqualFold(o.Occasion, occasion)
}

// ValidateOutfit checks an outfit before it is submitted.
func ValidateOutfit(o Outfit) error {
	if strings.TrimSpace(o.Occasion) == "" {
		return &ValidationError{Fields: []string{"occasion"}, Reason: "required"}
	}
	if len(o.Items) < MinOutfitItems || len(o.Items) > MaxOutfitItems {
		return &ValidationError{Fields: []string{"items"}, Reason: "must contain between 1 and 4 items"}
	}
	for _, it := range o.Items {
		if it.ItemID == "" {
			return &ValidationError{Fields: []string{"items.item_id"}, Reason: "required"}
		}
	}
	return nil
}

package model

import (
	"encoding/json"
	"strings"
)

// Item is a single piece of clothing in a user's wardrobe.
type Item struct {
	ID                  string `json:"id"`
	UserID              string `json:"user_id"`
	ItemType            string `json:"item_type"`
	SubType             string `json:"sub_type"`
	Material            string `json:"material,omitempty"`
	Color               string `json:"color,omitempty"`
	Formality           string `json:"formality,omitempty"`
	Pattern             string `json:"pattern,omitempty"`
	Fit                 string `json:"fit,omitempty"`
	SuitableForWeather  string `json:"suitable_for_weather,omitempty"`
	SuitableForOccasion string `json:"suitable_for_occasion,omitempty"`
	ImageLink           string `json:"image_link,omitempty"`
	Favorite            bool   `json:"favorite"`
}

// Common item types.
const (
	ItemTypeTops      = "tops"
	ItemTypeBottoms   = "bottoms"
	ItemTypeShoes     = "shoes"
	ItemTypeOuterwear = "outerwear"
	ItemTypeAccessory = "accessories"
)

// UnmarshalJSON accepts both "favorite" and "favourite" for the favorite
// flag; "favorite" wins when both are present.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	aux := struct {
		*plain
		Favorite  *bool `json:"favorite"`
		Favourite *bool `json:"favourite"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Favorite != nil:
		i.Favorite = *aux.Favorite
	case aux.Favourite != nil:
		i.Favorite = *aux.Favourite
	}
	return nil
}

// IsType reports whether the item's type matches t, ignoring case.
func (i Item) IsType(t string) bool {
	return strings.EqualFold(i.ItemType, t)
}

// ValidateItem checks the fields required before an item can be submitted.
func ValidateItem(i Item) error {
	var missing []string
	if strings.TrimSpace(i.ItemType) == "" {
		missing = append(missing, "item_type")
	}
	if strings.TrimSpace(i.SubType) == "" {
		missing = append(missing, "sub_type")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required"}
	}
	return nil
}

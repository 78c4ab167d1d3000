package model

// Weather is the current conditions for the signed-in user's location.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Location    string  `json:"location,omitempty"`
}

// GenerateRequest is the payload sent to the outfit generator.
type GenerateRequest struct {
	Occasion string  `json:"occasion"`
	Weather  Weather `json:"weather"`
}

// GeneratedOutfit is an outfit proposed by the generator.
type GeneratedOutfit struct {
	Items       []OutfitItem `json:"items"`
	Description string       `json:"description"`
	Occasion    string       `json:"occasion"`
}

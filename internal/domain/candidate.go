package domain

import "encoding/json"

// Candidate represents one catalog entry returned by the search service for
// a detection. Candidates are immutable facts per search call; each pipeline
// stage re-scores them but never mutates the catalog data.
type Candidate struct {
	CatalogKey string          `json:"catalogKey"` // GTIN or equivalent
	Name       string          `json:"name"`
	Brand      string          `json:"brand,omitempty"`
	Size       string          `json:"size,omitempty"`
	Category   string          `json:"category,omitempty"`
	ImageRef   string          `json:"imageRef,omitempty"` // front-image reference
	StoreTags  []string        `json:"storeTags,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// SearchQuery is the attribute set sent to the catalog search service.
type SearchQuery struct {
	Brand       string `json:"brand"`
	ProductName string `json:"productName,omitempty"`
	Flavor      string `json:"flavor,omitempty"`
	Size        string `json:"size,omitempty"`
	StoreHint   string `json:"storeHint,omitempty"` // retailer hint, boosts tagged candidates
}

// QueryFromDetection builds a search query from a detection's extracted attributes.
func QueryFromDetection(d *Detection, storeHint string) SearchQuery {
	return SearchQuery{
		Brand:       d.Brand,
		ProductName: d.ProductName,
		Flavor:      d.Flavor,
		Size:        d.Size,
		StoreHint:   storeHint,
	}
}

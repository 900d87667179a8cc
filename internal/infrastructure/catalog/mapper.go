package catalog

import (
	"encoding/json"

	"github.com/shelfmatch/backend/internal/domain"
)

// searchResponse is the wire shape returned by the catalog search service.
// Products are kept as raw JSON so the original payload survives into the
// audit trail.
type searchResponse struct {
	Products   []json.RawMessage `json:"products"`
	TotalHits  int               `json:"totalHits"`
	TotalPages int               `json:"totalPages"`
}

// productPayload is one catalog entry on the wire.
type productPayload struct {
	GTIN       string   `json:"gtin"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand"`
	Size       string   `json:"size"`
	Category   string   `json:"category"`
	FrontImage string   `json:"frontImage"`
	StoreTags  []string `json:"storeTags"`
}

// MapToCandidates converts raw catalog entries to domain candidates,
// preserving the raw payload on each. Entries without a catalog key are
// dropped - they cannot be staged or selected.
func MapToCandidates(products []json.RawMessage) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(products))

	for _, raw := range products {
		var p productPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.GTIN == "" {
			continue
		}

		candidates = append(candidates, domain.Candidate{
			CatalogKey: p.GTIN,
			Name:       p.Name,
			Brand:      p.Brand,
			Size:       p.Size,
			Category:   p.Category,
			ImageRef:   p.FrontImage,
			StoreTags:  p.StoreTags,
			Raw:        raw,
		})
	}

	return candidates, nil
}

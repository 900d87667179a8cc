package domain

import "time"

// Region is a bounding box on a shelf image, normalized to a 0-1000 scale.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the region is well-formed on the 0-1000 scale.
func (r Region) Valid() bool {
	if r.X1 < 0 || r.Y1 < 0 || r.X2 > 1000 || r.Y2 > 1000 {
		return false
	}
	return r.X2 > r.X1 && r.Y2 > r.Y1
}

// AttributeConfidence holds per-field confidence scores (0-1) reported by
// the external attribute extractor.
type AttributeConfidence struct {
	Brand       float64 `json:"brand"`
	ProductName float64 `json:"productName"`
	Size        float64 `json:"size"`
	Flavor      float64 `json:"flavor"`
	Category    float64 `json:"category"`
}

// Detection represents one located product on a shelf image.
// It is created by the external detector/extractor; the matching core only
// writes the selected candidate fields when a final outcome is reached.
type Detection struct {
	ID            string              `json:"id"`
	ImageID       string              `json:"imageId"`
	ProjectID     string              `json:"projectId"`
	ItemIndex     int                 `json:"itemIndex"`
	Region        Region              `json:"region"`
	Brand         string              `json:"brand,omitempty"`
	ProductName   string              `json:"productName,omitempty"`
	Size          string              `json:"size,omitempty"`
	Flavor        string              `json:"flavor,omitempty"`
	Category      string              `json:"category,omitempty"`
	Confidence    AttributeConfidence `json:"confidence"`
	FullyAnalyzed bool                `json:"fullyAnalyzed"`
	CropRef       string              `json:"cropRef,omitempty"` // reference to the cropped region image
	Selected      *SelectedCandidate  `json:"selected,omitempty"`
}

// SelectedCandidate is the terminal match written back onto a Detection.
// A Detection carries at most one at any time; re-running the pipeline
// overwrites it.
type SelectedCandidate struct {
	CatalogKey      string    `json:"catalogKey"`
	Name            string    `json:"name"`
	Brand           string    `json:"brand,omitempty"`
	Category        string    `json:"category,omitempty"`
	ImageRef        string    `json:"imageRef,omitempty"`
	SelectionMethod string    `json:"selectionMethod"`
	MatchedAt       time.Time `json:"matchedAt"`
}

// Eligible reports whether the detection can enter the matching pipeline:
// attributes extracted and no outcome written yet.
func (d *Detection) Eligible() bool {
	return d.FullyAnalyzed && d.Selected == nil
}

// pkg/core/marker.go
package core

// MarkerRecord is a single catalog placement on the map. Coordinates are
// normalized to [0,1] of the full map extent, independent of zoom.
type MarkerRecord struct {
	ID            uint    `json:"id"`
	CatalogNumber int     `json:"number"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Image         string  `json:"image,omitempty"`
	DisplayName   string  `json:"name"`
	Symbol        string  `json:"symbol"`
}

// HasImage reports whether an image URI is attached to the record.
func (m MarkerRecord) HasImage() bool {
	return m.Image != ""
}

// MarkerPatch is a partial update applied to an existing record. Nil fields
// are left untouched.
type MarkerPatch struct {
	X     *float64
	Y     *float64
	Image *string
}

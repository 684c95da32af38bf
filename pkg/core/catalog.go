// pkg/core/catalog.go
package core

// CatalogEntry is one record of the remote catalog, denormalized into
// markers at placement time.
type CatalogEntry struct {
	Number      int    `json:"number"`
	DisplayName string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
}

// LineRecord is one line text belonging to a catalog entry.
type LineRecord struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
	Meaning  string `json:"meaning,omitempty"`
}

// CatalogDetail is the full record served for a detail popup.
type CatalogDetail struct {
	CatalogEntry
	Lines []LineRecord `json:"lines,omitempty"`
}

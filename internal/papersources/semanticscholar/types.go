// Package semanticscholar provides a client for the Semantic Scholar
// Academic Graph API.
//
// Semantic Scholar aggregates papers across fields with citation counts
// and open-access PDF locations.
//
// API documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the paper search response.
type SearchResponse struct {
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Next   int         `json:"next"`
	Data   []PaperData `json:"data"`
}

// PaperData represents a single paper in the search response.
type PaperData struct {
	PaperID         string            `json:"paperId"`
	Title           string            `json:"title"`
	Abstract        string            `json:"abstract"`
	Year            int               `json:"year"`
	Venue           string            `json:"venue"`
	CitationCount   int               `json:"citationCount"`
	IsOpenAccess    bool              `json:"isOpenAccess"`
	OpenAccessPdf   *OpenAccessPdf    `json:"openAccessPdf"`
	ExternalIDs     map[string]any    `json:"externalIds"`
	Authors         []AuthorData      `json:"authors"`
	PublicationDate string            `json:"publicationDate"`
	Journal         *Journal          `json:"journal"`
}

// OpenAccessPdf holds the open-access PDF location when one is known.
type OpenAccessPdf struct {
	URL    string `json:"url"`
	Status string `json:"status"` // "GOLD", "GREEN", "HYBRID", "BRONZE"
}

// AuthorData represents an author in the search response.
type AuthorData struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// Journal represents journal metadata for a paper.
type Journal struct {
	Name   string `json:"name"`
	Volume string `json:"volume"`
	Pages  string `json:"pages"`
}

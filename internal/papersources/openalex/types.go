// Package openalex provides a client for the OpenAlex API.
//
// OpenAlex is a fully open catalog of scholarly works, the successor to
// Microsoft Academic Graph. Abstracts are delivered as inverted indexes
// and reconstructed client-side.
//
// API documentation: https://docs.openalex.org/
package openalex

// SearchResponse represents the /works search response.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta holds paging information for a search response.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents a single OpenAlex work.
type Work struct {
	ID                    string           `json:"id"` // "https://openalex.org/W2741809807"
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	PublicationYear       int              `json:"publication_year"`
	CitedByCount          int              `json:"cited_by_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []Authorship     `json:"authorships"`
	PrimaryLocation       *Location        `json:"primary_location"`
	BestOALocation        *Location        `json:"best_oa_location"`
	OpenAccess            OpenAccess       `json:"open_access"`
}

// Authorship represents an author position on a work.
type Authorship struct {
	Author Author `json:"author"`
}

// Author represents an OpenAlex author entity.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Location represents where a version of the work is hosted.
type Location struct {
	LandingPageURL string  `json:"landing_page_url"`
	PdfURL         string  `json:"pdf_url"`
	IsOA           bool    `json:"is_oa"`
	Source         *Venue  `json:"source"`
	Version        string  `json:"version"`
}

// Venue represents the hosting source (journal, repository).
type Venue struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// OpenAccess holds the work-level open-access summary.
type OpenAccess struct {
	IsOA   bool   `json:"is_oa"`
	Status string `json:"oa_status"` // "gold", "green", "hybrid", "bronze", "closed"
	OAURL  string `json:"oa_url"`
}

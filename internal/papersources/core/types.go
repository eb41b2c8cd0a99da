// Package core provides a client for the CORE v3 API.
//
// CORE aggregates open-access full texts harvested from institutional
// repositories, which makes its downloadUrl field a strong PDF signal.
//
// API documentation: https://api.core.ac.uk/docs/v3
package core

// SearchResponse represents the /search/works response.
type SearchResponse struct {
	TotalHits int          `json:"totalHits"`
	Limit     int          `json:"limit"`
	Offset    int          `json:"offset"`
	Results   []WorkResult `json:"results"`
}

// WorkResult represents a single work in the search response.
type WorkResult struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	YearPublished int      `json:"yearPublished"`
	DOI           string   `json:"doi"`
	DownloadURL   string   `json:"downloadUrl"`
	Authors       []Author `json:"authors"`
	Publisher     string   `json:"publisher"`
	CitationCount int      `json:"citationCount"`
	Links         []Link   `json:"links"`
}

// Author represents a work author.
type Author struct {
	Name string `json:"name"`
}

// Link represents a typed link attached to a work.
type Link struct {
	Type string `json:"type"` // "download", "reader", "display"
	URL  string `json:"url"`
}

// Package scopus provides a client for the Elsevier Scopus Search API.
//
// Scopus is a subscription abstract and citation database. An Elsevier
// API key is required; abstracts and PDFs are generally paywalled, so
// records carry metadata and citation counts rather than full text.
//
// API documentation: https://dev.elsevier.com/documentation/ScopusSearchAPI.wadl
package scopus

// SearchResponse represents the Scopus search response envelope.
type SearchResponse struct {
	SearchResults SearchResults `json:"search-results"`
}

// SearchResults holds the search payload.
type SearchResults struct {
	TotalResults string  `json:"opensearch:totalResults"`
	Entries      []Entry `json:"entry"`
}

// Entry represents a single Scopus record.
type Entry struct {
	Title        string `json:"dc:title"`
	Creator      string `json:"dc:creator"` // first author only
	Description  string `json:"dc:description"`
	DOI          string `json:"prism:doi"`
	CoverDate    string `json:"prism:coverDate"` // "2021-06-15"
	Publication  string `json:"prism:publicationName"`
	CitedByCount string `json:"citedby-count"`
	ScopusID     string `json:"dc:identifier"` // "SCOPUS_ID:85108..."
	EID          string `json:"eid"`
	OpenAccess   string `json:"openaccessFlag"`
	Links        []Link `json:"link"`
	Error        string `json:"error"` // "Result set was empty"
}

// Link represents a ref-typed link on an entry.
type Link struct {
	Ref  string `json:"@ref"` // "self", "scopus", "full-text"
	Href string `json:"@href"`
}

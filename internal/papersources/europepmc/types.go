// Package europepmc provides a client for the Europe PMC REST API.
//
// Europe PMC indexes life-sciences literature including MEDLINE, PMC
// full texts and preprint servers, and exposes full-text URLs for its
// open-access subset.
//
// API documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse represents the /search response.
type SearchResponse struct {
	HitCount   int        `json:"hitCount"`
	ResultList ResultList `json:"resultList"`
}

// ResultList wraps the result array.
type ResultList struct {
	Results []Result `json:"result"`
}

// Result represents a single Europe PMC record.
type Result struct {
	ID            string       `json:"id"`
	Source        string       `json:"source"` // "MED", "PMC", "PPR"
	PMID          string       `json:"pmid"`
	PMCID         string       `json:"pmcid"`
	DOI           string       `json:"doi"`
	Title         string       `json:"title"`
	AuthorString  string       `json:"authorString"` // "Doe J, Zhang W."
	JournalTitle  string       `json:"journalTitle"`
	PubYear       string       `json:"pubYear"`
	AbstractText  string       `json:"abstractText"`
	IsOpenAccess  string       `json:"isOpenAccess"` // "Y" or "N"
	CitedByCount  int          `json:"citedByCount"`
	FullTextURLs  FullTextURLs `json:"fullTextUrlList"`
}

// FullTextURLs wraps the full-text URL list.
type FullTextURLs struct {
	URLs []FullTextURL `json:"fullTextUrl"`
}

// FullTextURL represents one full-text location.
type FullTextURL struct {
	Availability string `json:"availability"` // "Open access", "Subscription required"
	DocumentType string `json:"documentStyle"` // "pdf", "html"
	Site         string `json:"site"`
	URL          string `json:"url"`
}

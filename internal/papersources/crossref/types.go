// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registration agency for most scholarly publishers,
// which makes it the authority for DOI-level bibliographic metadata.
//
// API documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// SearchResponse represents the /works search response envelope.
type SearchResponse struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// Message holds the payload of a /works response.
type Message struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work represents a single Crossref work record.
type Work struct {
	DOI            string      `json:"DOI"`
	Title          []string    `json:"title"`
	Abstract       string      `json:"abstract"` // JATS XML fragment
	Author         []Author    `json:"author"`
	Issued         DateParts   `json:"issued"`
	ContainerTitle []string    `json:"container-title"`
	URL            string      `json:"URL"`
	Link           []Link      `json:"link"`
	IsReferencedBy int         `json:"is-referenced-by-count"`
	Type           string      `json:"type"`
	License        []License   `json:"license"`
}

// Author represents a work author.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // organizational authors
}

// DateParts represents Crossref's nested date encoding, e.g.
// {"date-parts": [[2021, 6, 15]]}.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

// Link represents a full-text link advertised by the publisher.
type Link struct {
	URL                 string `json:"URL"`
	ContentType         string `json:"content-type"`
	ContentVersion      string `json:"content-version"`
	IntendedApplication string `json:"intended-application"`
}

// License represents a license record attached to a work.
type License struct {
	URL            string `json:"URL"`
	ContentVersion string `json:"content-version"`
}

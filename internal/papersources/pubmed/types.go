// Package pubmed provides a client for the NCBI PubMed E-utilities API.
//
// Searching is a two-phase protocol: esearch returns matching PMIDs as
// JSON, efetch returns full article records as XML.
//
// API documentation: https://www.ncbi.nlm.nih.gov/books/NBK25501/
package pubmed

import "encoding/xml"

// ESearchResponse represents the esearch JSON response.
type ESearchResponse struct {
	ESearchResult ESearchResult `json:"esearchresult"`
}

// ESearchResult holds the PMID list for a query.
type ESearchResult struct {
	Count  string   `json:"count"`
	RetMax string   `json:"retmax"`
	IDList []string `json:"idlist"`
}

// ArticleSet represents the efetch XML response.
type ArticleSet struct {
	XMLName  xml.Name         `xml:"PubmedArticleSet"`
	Articles []PubmedArticle  `xml:"PubmedArticle"`
}

// PubmedArticle represents a single article record.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

// MedlineCitation holds the citation payload of an article.
type MedlineCitation struct {
	PMID    string  `xml:"PMID"`
	Article Article `xml:"Article"`
}

// Article holds bibliographic details.
type Article struct {
	Title    string     `xml:"ArticleTitle"`
	Abstract Abstract   `xml:"Abstract"`
	Authors  AuthorList `xml:"AuthorList"`
	Journal  Journal    `xml:"Journal"`
}

// Abstract may be split into labeled sections (Background, Methods, ...).
type Abstract struct {
	Sections []AbstractText `xml:"AbstractText"`
}

// AbstractText is one abstract section with an optional label.
type AbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

// AuthorList wraps the article's authors.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author represents an article author.
type Author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

// Journal holds journal and issue details.
type Journal struct {
	Title        string       `xml:"Title"`
	JournalIssue JournalIssue `xml:"JournalIssue"`
}

// JournalIssue holds the publication date.
type JournalIssue struct {
	PubDate PubDate `xml:"PubDate"`
}

// PubDate is the structured publication date. Year may be absent, in which
// case MedlineDate carries a free-form range like "2002 Jan-Feb".
type PubDate struct {
	Year        string `xml:"Year"`
	MedlineDate string `xml:"MedlineDate"`
}

// PubmedData carries identifiers attached during indexing.
type PubmedData struct {
	ArticleIDs ArticleIDList `xml:"ArticleIdList"`
}

// ArticleIDList wraps the identifier list.
type ArticleIDList struct {
	IDs []ArticleID `xml:"ArticleId"`
}

// ArticleID is a typed identifier ("doi", "pmc", "pubmed").
type ArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

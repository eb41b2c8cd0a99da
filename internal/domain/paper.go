// Package domain defines the canonical paper model shared by all provider
// clients, the search orchestrator, and the PDF resolver.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SourceType identifies an external academic-metadata provider.
type SourceType string

// Supported provider tags.
const (
	SourceArxiv           SourceType = "arxiv"
	SourceSemanticScholar SourceType = "semantic_scholar"
	SourceCrossref        SourceType = "crossref"
	SourceOpenAlex        SourceType = "openalex"
	SourcePubMed          SourceType = "pubmed"
	SourceCORE            SourceType = "core"
	SourceScopus          SourceType = "scopus"
	SourceEuropePMC       SourceType = "europepmc"
)

// AllSourceTypes returns every provider tag in a stable order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceArxiv,
		SourceSemanticScholar,
		SourceCrossref,
		SourceOpenAlex,
		SourcePubMed,
		SourceCORE,
		SourceScopus,
		SourceEuropePMC,
	}
}

// ParseSourceType converts a string tag into a SourceType.
// Returns ErrUnknownSource for tags that do not match any provider.
func ParseSourceType(s string) (SourceType, error) {
	tag := SourceType(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range AllSourceTypes() {
		if st == tag {
			return st, nil
		}
	}
	return "", NewUnknownSourceError(s)
}

// Paper is the canonical record every provider response is normalized into.
// A single paper may arrive from several providers; the orchestrator merges
// copies by UniqueKey and TitleHash, keeping the most complete one.
type Paper struct {
	// Title is required; provider clients discard records with empty titles.
	Title string `json:"title"`

	// Authors is the ordered author list as reported by the provider.
	Authors []string `json:"authors,omitempty"`

	// Abstract may be empty; several providers omit or truncate it.
	Abstract string `json:"abstract,omitempty"`

	// Year is the publication year; zero means unknown.
	Year int `json:"year,omitempty"`

	// DOI is normalized: lower-cased, resolver prefix stripped.
	DOI string `json:"doi,omitempty"`

	// URL is the landing page for the paper.
	URL string `json:"url,omitempty"`

	// Source is the provider that contributed this copy of the record.
	Source SourceType `json:"source"`

	// IsOpenAccess reports whether the provider flagged the paper as OA.
	IsOpenAccess bool `json:"is_open_access"`

	// OpenAccessURL is an OA location reported by a provider or enricher.
	OpenAccessURL string `json:"open_access_url,omitempty"`

	// PDFURL is a directly fetchable PDF link, when one is known or resolved.
	PDFURL string `json:"pdf_url,omitempty"`

	// Journal is the venue or container title.
	Journal string `json:"journal,omitempty"`

	// CitationCount is the provider-reported citation count; zero may mean
	// either "uncited" or "unknown" depending on the provider.
	CitationCount int `json:"citation_count,omitempty"`

	// RelevanceScore is set by the ranker and adjusted by later filter
	// stages. It is not part of the paper's identity.
	RelevanceScore float64 `json:"relevance_score"`

	// RawMetadata holds the provider-specific payload kept only for that
	// provider's own enrichment lookups. Never matched on generically.
	RawMetadata map[string]interface{} `json:"-"`
}

// doiPrefixes are resolver prefixes stripped during DOI normalization.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lower-cases a DOI and strips resolver URL prefixes.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(strings.ToLower(doi), prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

// UniqueKey returns the first-pass dedup identity for the paper:
// the DOI when present, else a hash of normalized title plus the first
// author's surname, else a provider-qualified title fallback.
func (p *Paper) UniqueKey() string {
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return "doi:" + doi
	}
	title := normalizeTitle(p.Title)
	if surname := firstAuthorSurname(p.Authors); surname != "" {
		return "ta:" + shortHash(title+"|"+surname)
	}
	return string(p.Source) + ":" + shortHash(title)
}

// TitleHash returns the normalized-title identity used by the second dedup
// pass, which catches the same work arriving under different unique keys
// (for example a DOI-bearing copy and a DOI-less preprint copy).
func (p *Paper) TitleHash() string {
	return shortHash(normalizeTitle(p.Title))
}

// CompletenessScore counts the valuable metadata fields a paper has
// populated. Used as the dedup tie-break: on key collision the higher
// score wins regardless of arrival order.
func (p *Paper) CompletenessScore() int {
	score := 0
	if p.DOI != "" {
		score++
	}
	if p.PDFURL != "" {
		score++
	}
	if len(p.Abstract) > 50 {
		score++
	}
	if p.Year != 0 {
		score++
	}
	if len(p.Authors) > 0 {
		score++
	}
	if p.IsOpenAccess {
		score++
	}
	return score
}

// normalizeTitle lower-cases a title and collapses all whitespace runs.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// firstAuthorSurname extracts a normalized surname from the first author.
// Handles both "Given Surname" and "Surname, Given" forms.
func firstAuthorSurname(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	name := strings.TrimSpace(authors[0])
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.ToLower(strings.TrimSpace(name[:idx]))
	}
	fields := strings.Fields(name)
	return strings.ToLower(fields[len(fields)-1])
}

// shortHash returns a compact hex digest suitable for map keys.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}

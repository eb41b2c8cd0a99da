package discovery

import (
	"strings"
	"unicode"

	"github.com/litscout/discovery-engine/internal/domain"
)

// stopwords are common query words that carry no concept weight.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"has": true, "have": true, "had": true, "its": true, "their": true,
	"using": true, "based": true, "between": true, "about": true,
	"into": true, "over": true, "under": true, "via": true, "can": true,
	"how": true, "what": true, "which": true, "when": true, "where": true,
	"why": true, "does": true, "effect": true, "effects": true,
	"impact": true, "study": true, "review": true, "recent": true,
	"new": true, "novel": true, "survey": true, "papers": true,
	"paper": true, "research": true,
}

// ExtractCoreTerms pulls the concept-bearing terms out of a free-text
// query: lowercased, stopwords and short tokens dropped, duplicates
// collapsed, original order preserved. Cheap and local; no network calls.
func ExtractCoreTerms(query string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})

	var terms []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		tok = strings.Trim(tok, "-")
		if len(tok) <= 2 || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// coreTermPresence is the mean fraction of core terms literally present
// in each paper's title+abstract. Telemetry only.
func coreTermPresence(papers []*domain.Paper, terms []string) float64 {
	if len(papers) == 0 || len(terms) == 0 {
		return 0
	}

	var total float64
	for _, p := range papers {
		text := strings.ToLower(p.Title + " " + p.Abstract)
		hits := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				hits++
			}
		}
		total += float64(hits) / float64(len(terms))
	}
	return total / float64(len(papers))
}

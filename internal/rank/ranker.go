// Package rank scores merged papers against the originating query.
//
// Four interchangeable strategies share one contract: every input paper
// appears exactly once in the output, relevanceScore lands in [0,1], and
// papers are sorted descending with original order preserved for ties.
// Strategy selection is a deployment-time configuration choice.
package rank

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/litscout/discovery-engine/internal/domain"
)

// Request carries the query context a ranker scores against.
type Request struct {
	// Query is the original free-text query.
	Query string

	// TargetText is optional longer context (e.g. a draft paragraph the
	// papers should support).
	TargetText string

	// TargetKeywords are optional caller-supplied keywords.
	TargetKeywords []string

	// CoreTerms are the core query terms extracted by the facade.
	CoreTerms []string

	// SemanticContext is an optional free-form topic description.
	SemanticContext string
}

// Ranker orders papers by relevance to a request.
type Ranker interface {
	// Rank returns the same papers with RelevanceScore populated, sorted
	// descending. Implementations must not drop or duplicate papers.
	Rank(ctx context.Context, papers []*domain.Paper, req Request) ([]*domain.Paper, error)

	// Name identifies the strategy for logging.
	Name() string
}

// sortByScore sorts papers descending by RelevanceScore, preserving the
// original order of equal scores.
func sortByScore(papers []*domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].RelevanceScore > papers[j].RelevanceScore
	})
}

// tokenize lowercases and splits text into terms, dropping short stopwords.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 && !stopwords[f] {
			terms = append(terms, f)
		}
	}
	return terms
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"into": true, "using": true, "based": true, "between": true,
	"their": true, "have": true, "has": true, "can": true,
}

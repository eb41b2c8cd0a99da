package rank

import (
	"context"

	"github.com/litscout/discovery-engine/internal/domain"
)

// LexicalRanker scores papers by term overlap with the query. It is the
// default strategy: zero-cost, deterministic, no external dependency.
type LexicalRanker struct{}

var _ Ranker = (*LexicalRanker)(nil)

// NewLexicalRanker creates a new lexical ranker.
func NewLexicalRanker() *LexicalRanker {
	return &LexicalRanker{}
}

// Name identifies the strategy.
func (r *LexicalRanker) Name() string { return "lexical" }

// Rank scores each paper by the fraction of query terms present in its
// title and abstract, title matches weighted double.
func (r *LexicalRanker) Rank(_ context.Context, papers []*domain.Paper, req Request) ([]*domain.Paper, error) {
	terms := tokenize(req.Query)
	for _, kw := range req.TargetKeywords {
		terms = append(terms, tokenize(kw)...)
	}
	terms = uniqueTerms(terms)

	for _, p := range papers {
		p.RelevanceScore = lexicalScore(p, terms)
	}
	sortByScore(papers)
	return papers, nil
}

// lexicalScore computes the weighted term-overlap fraction in [0,1].
func lexicalScore(p *domain.Paper, terms []string) float64 {
	if len(terms) == 0 {
		return 0.5
	}

	titleTerms := termSet(tokenize(p.Title))
	abstractTerms := termSet(tokenize(p.Abstract))

	var score float64
	for _, t := range terms {
		switch {
		case titleTerms[t]:
			score += 1.0
		case abstractTerms[t]:
			score += 0.5
		}
	}
	return score / float64(len(terms))
}

func termSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

package rank

import (
	"context"
	"math"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
)

// HeuristicRanker is the fallback strategy used when no ranker is
// configured or the configured one fails. It scores papers purely on
// metadata quality signals, ignoring the query.
type HeuristicRanker struct {
	now func() time.Time
}

var _ Ranker = (*HeuristicRanker)(nil)

// NewHeuristicRanker creates a new heuristic ranker.
func NewHeuristicRanker() *HeuristicRanker {
	return &HeuristicRanker{now: time.Now}
}

// Name identifies the strategy.
func (r *HeuristicRanker) Name() string { return "heuristic" }

// Rank scores papers on citation count, recency and metadata presence.
func (r *HeuristicRanker) Rank(_ context.Context, papers []*domain.Paper, _ Request) ([]*domain.Paper, error) {
	currentYear := r.now().Year()
	for _, p := range papers {
		p.RelevanceScore = heuristicScore(p, currentYear)
	}
	sortByScore(papers)
	return papers, nil
}

// heuristicScore combines quality signals into [0,1]:
// citations up to 0.4 (log-scaled, saturating around 1000),
// recency up to 0.3 (linear decay over 10 years),
// abstract present 0.15, PDF present 0.15.
func heuristicScore(p *domain.Paper, currentYear int) float64 {
	var score float64

	if p.CitationCount > 0 {
		score += 0.4 * math.Min(1, math.Log10(float64(p.CitationCount)+1)/3)
	}

	if p.Year > 0 {
		age := currentYear - p.Year
		if age < 0 {
			age = 0
		}
		if age <= 10 {
			score += 0.3 * (1 - float64(age)/10)
		}
	}

	if len(p.Abstract) > 50 {
		score += 0.15
	}
	if p.PDFURL != "" {
		score += 0.15
	}

	return score
}

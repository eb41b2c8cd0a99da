package orchestrator

import (
	"math"
	"sort"
	"strings"

	"github.com/litscout/discovery-engine/internal/domain"
)

// mergeInto merges papers into the unique-key map. On key collision the
// higher-completeness paper wins; equal scores break the tie by source
// tag so the outcome is independent of arrival order.
func mergeInto(merged map[string]*domain.Paper, papers []*domain.Paper) {
	for _, p := range papers {
		if p == nil || p.Title == "" {
			continue
		}
		key := p.UniqueKey()
		existing, ok := merged[key]
		if !ok || replaces(p, existing) {
			merged[key] = p
		}
	}
}

// replaces reports whether candidate should replace incumbent.
func replaces(candidate, incumbent *domain.Paper) bool {
	cs, is := candidate.CompletenessScore(), incumbent.CompletenessScore()
	if cs != is {
		return cs > is
	}
	return candidate.Source < incumbent.Source
}

// valuesOf flattens the merged map into a deterministic slice, sorted by
// unique key so downstream stages see a stable order regardless of map
// iteration.
func valuesOf(merged map[string]*domain.Paper) []*domain.Paper {
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	papers := make([]*domain.Paper, 0, len(keys))
	for _, k := range keys {
		papers = append(papers, merged[k])
	}
	return papers
}

// dedupByTitle is the second dedup sweep: papers that survived the
// unique-key merge under different keys (a DOI-bearing copy and a DOI-less
// preprint of the same work) collapse on their normalized-title hash.
func dedupByTitle(papers []*domain.Paper) []*domain.Paper {
	byTitle := make(map[string]*domain.Paper, len(papers))
	order := make([]string, 0, len(papers))

	for _, p := range papers {
		h := p.TitleHash()
		existing, ok := byTitle[h]
		if !ok {
			byTitle[h] = p
			order = append(order, h)
			continue
		}
		if replaces(p, existing) {
			byTitle[h] = p
		}
	}

	out := make([]*domain.Paper, 0, len(order))
	for _, h := range order {
		out = append(out, byTitle[h])
	}
	return out
}

// hardFilter is the deterministic, provider-agnostic safety net: providers
// cannot be trusted to honor the filters they were asked to apply natively.
// With a year bound requested, papers missing a year are removed too.
func hardFilter(papers []*domain.Paper, yearFrom, yearTo int, openAccessOnly bool) []*domain.Paper {
	out := papers[:0]
	for _, p := range papers {
		if yearFrom != 0 || yearTo != 0 {
			if p.Year == 0 {
				continue
			}
			if yearFrom != 0 && p.Year < yearFrom {
				continue
			}
			if yearTo != 0 && p.Year > yearTo {
				continue
			}
		}
		if openAccessOnly && !p.IsOpenAccess && p.PDFURL == "" && p.OpenAccessURL == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// conceptGate penalizes papers that rank well but share almost none of
// the query's concrete terminology. Active only when enough core terms
// were extracted.
func (o *Orchestrator) conceptGate(papers []*domain.Paper, coreTerms []string) []*domain.Paper {
	if len(coreTerms) < o.config.ConceptGateMinTerms || len(papers) == 0 {
		return papers
	}

	for _, p := range papers {
		text := strings.ToLower(p.Title + " " + p.Abstract)
		present := 0
		for _, term := range coreTerms {
			if strings.Contains(text, strings.ToLower(term)) {
				present++
			}
		}
		fraction := float64(present) / float64(len(coreTerms))
		if fraction < o.config.ConceptGateThreshold {
			p.RelevanceScore *= fraction
		}
	}

	sortByScore(papers)
	return papers
}

// relevanceFloor drops papers scoring below the floor, unless that would
// leave fewer than FloorBypassCount results while at least that many were
// available pre-floor, in which case the top pre-floor papers are
// returned instead. The engine never returns a near-empty set merely
// because every candidate scored low.
func (o *Orchestrator) relevanceFloor(papers []*domain.Paper) []*domain.Paper {
	kept := make([]*domain.Paper, 0, len(papers))
	for _, p := range papers {
		if p.RelevanceScore >= o.config.RelevanceFloor {
			kept = append(kept, p)
		}
	}

	if len(kept) < o.config.FloorBypassCount && len(papers) >= o.config.FloorBypassCount {
		return papers[:o.config.FloorBypassCount]
	}
	return kept
}

// diversityRerank caps each source's representation in the head of the
// list at max(2, ceil(fraction * maxResults)). Papers over a source's cap
// are deferred and appended after the capped selection, so the total
// count is preserved even when true diversity is not achievable.
func (o *Orchestrator) diversityRerank(papers []*domain.Paper, maxResults int) []*domain.Paper {
	if len(papers) == 0 {
		return papers
	}

	perSourceCap := int(math.Ceil(o.config.DiversityFraction * float64(maxResults)))
	if perSourceCap < 2 {
		perSourceCap = 2
	}

	perSource := make(map[domain.SourceType]int)
	selected := make([]*domain.Paper, 0, len(papers))
	deferred := make([]*domain.Paper, 0)

	for _, p := range papers {
		if perSource[p.Source] < perSourceCap {
			perSource[p.Source]++
			selected = append(selected, p)
		} else {
			deferred = append(deferred, p)
		}
	}

	return append(selected, deferred...)
}

// sortByScore sorts papers descending by RelevanceScore, preserving the
// original order of equal scores.
func sortByScore(papers []*domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].RelevanceScore > papers[j].RelevanceScore
	})
}

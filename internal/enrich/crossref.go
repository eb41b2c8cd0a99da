package enrich

import (
	"context"

	"github.com/litscout/discovery-engine/internal/domain"
)

// crossrefBatchSize bounds how many DOIs go into one filter query.
const crossrefBatchSize = 40

// MetadataClient is the subset of the Crossref client used for
// enrichment.
type MetadataClient interface {
	GetBatch(ctx context.Context, dois []string) (map[string]*domain.Paper, error)
}

// CrossrefEnricher backfills journal, citation count, year and abstract
// from the DOI registry for papers that arrived with a DOI but sparse
// metadata.
type CrossrefEnricher struct {
	client MetadataClient
}

var _ Enricher = (*CrossrefEnricher)(nil)

// NewCrossrefEnricher creates a new DOI-registry enricher.
func NewCrossrefEnricher(client MetadataClient) *CrossrefEnricher {
	return &CrossrefEnricher{client: client}
}

// Name identifies the enricher.
func (e *CrossrefEnricher) Name() string { return "crossref" }

// Enrich looks up sparse DOI-bearing papers in bulk and fills their gaps.
func (e *CrossrefEnricher) Enrich(ctx context.Context, papers []*domain.Paper) error {
	candidates := make(map[string]*domain.Paper)
	for _, p := range papers {
		if p.DOI == "" {
			continue
		}
		if p.Journal == "" || p.CitationCount == 0 || p.Year == 0 || p.Abstract == "" {
			candidates[p.DOI] = p
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	dois := make([]string, 0, len(candidates))
	for doi := range candidates {
		dois = append(dois, doi)
	}

	for start := 0; start < len(dois); start += crossrefBatchSize {
		end := start + crossrefBatchSize
		if end > len(dois) {
			end = len(dois)
		}

		records, err := e.client.GetBatch(ctx, dois[start:end])
		if err != nil {
			return err
		}

		for doi, record := range records {
			p, ok := candidates[doi]
			if !ok {
				continue
			}
			fillGaps(p, record)
		}
	}
	return nil
}

// fillGaps copies fields from record into p only where p is missing them.
func fillGaps(p, record *domain.Paper) {
	if p.Journal == "" {
		p.Journal = record.Journal
	}
	if p.CitationCount == 0 {
		p.CitationCount = record.CitationCount
	}
	if p.Year == 0 {
		p.Year = record.Year
	}
	if p.Abstract == "" {
		p.Abstract = record.Abstract
	}
	if len(p.Authors) == 0 {
		p.Authors = record.Authors
	}
}

// Package enrich fills metadata gaps on merged papers after dedup and
// before ranking. Enrichers mutate papers in place, never remove them,
// and swallow their own failures: enrichment is best-effort.
package enrich

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/litscout/discovery-engine/internal/domain"
)

// Enricher fills gaps on the given papers in place.
type Enricher interface {
	// Enrich mutates papers, filling missing fields. Returning an error
	// only affects logging; papers are left as complete as possible.
	Enrich(ctx context.Context, papers []*domain.Paper) error

	// Name identifies the enricher for logging.
	Name() string
}

// RunAll runs every enricher concurrently over the same paper slice and
// logs failures without propagating them. Enrichers only fill disjoint
// gaps, so concurrent mutation of different fields on the same paper is
// coordinated by each enricher checking-then-setting only empty fields;
// RunAll serializes nothing beyond waiting for completion.
func RunAll(ctx context.Context, logger zerolog.Logger, enrichers []Enricher, papers []*domain.Paper) {
	if len(enrichers) == 0 || len(papers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, e := range enrichers {
		wg.Add(1)
		go func(e Enricher) {
			defer wg.Done()
			if err := e.Enrich(ctx, papers); err != nil {
				logger.Warn().
					Err(err).
					Str("enricher", e.Name()).
					Msg("enrichment failed")
			}
		}(e)
	}
	wg.Wait()
}

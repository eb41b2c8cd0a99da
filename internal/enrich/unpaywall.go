package enrich

import (
	"context"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/unpaywall"
)

// OALookup is the subset of the Unpaywall client used for enrichment.
type OALookup interface {
	Lookup(ctx context.Context, doi string) (*unpaywall.Location, error)
	Enabled() bool
}

// UnpaywallEnricher fills open-access locations for DOI-bearing papers
// that arrived without a PDF URL.
type UnpaywallEnricher struct {
	client OALookup
}

var _ Enricher = (*UnpaywallEnricher)(nil)

// NewUnpaywallEnricher creates a new open-access location enricher.
func NewUnpaywallEnricher(client OALookup) *UnpaywallEnricher {
	return &UnpaywallEnricher{client: client}
}

// Name identifies the enricher.
func (e *UnpaywallEnricher) Name() string { return "unpaywall" }

// Enrich looks up each DOI-bearing paper missing a PDF URL. Individual
// lookup failures skip that paper; the rest of the batch proceeds.
func (e *UnpaywallEnricher) Enrich(ctx context.Context, papers []*domain.Paper) error {
	if !e.client.Enabled() {
		return nil
	}

	var lastErr error
	for _, p := range papers {
		if p.DOI == "" || p.PDFURL != "" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		loc, err := e.client.Lookup(ctx, p.DOI)
		if err != nil {
			lastErr = err
			continue
		}
		if loc == nil {
			continue
		}

		if loc.PDFURL != "" {
			p.PDFURL = loc.PDFURL
		}
		if p.OpenAccessURL == "" {
			p.OpenAccessURL = firstNonEmpty(loc.PDFURL, loc.LandingURL)
		}
		if loc.IsOpenAccess {
			p.IsOpenAccess = true
		}
	}
	return lastErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

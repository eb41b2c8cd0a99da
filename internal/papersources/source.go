// Package papersources provides interfaces and types for academic paper source clients.
//
// This package defines the foundational abstractions that all paper source implementations
// must follow. Each academic database (arXiv, Semantic Scholar, Crossref, etc.) implements
// the Source interface, allowing the discovery engine to search multiple providers
// concurrently with a unified API.
//
// Example usage:
//
//	source := semanticscholar.New(cfg, httpClient)
//	params := papersources.SearchParams{
//		Query:      "CRISPR gene editing",
//		MaxResults: 25,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
)

// SearchParams defines the parameters for searching academic papers.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the search query string (required). Each client translates it
	// into that provider's query syntax.
	Query string

	// MaxResults limits the number of papers returned in a single request.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// YearFrom filters papers published in or after this year. Zero means no
	// lower bound. Providers without native support ignore it; the
	// orchestrator's hard-filter stage is the correctness backstop.
	YearFrom int

	// YearTo filters papers published in or before this year. Zero means no
	// upper bound. Same backstop rules as YearFrom.
	YearTo int

	// OpenAccessOnly filters results to open access papers where the
	// provider supports it natively; otherwise ignored (backstopped).
	OpenAccessOnly bool
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search.
	// May be empty if no papers match the search criteria.
	Papers []*domain.Paper

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// Source defines the interface that all paper source clients must implement.
//
// Implementations should:
//   - Respect context cancellation
//   - Apply rate limiting as needed
//   - Transform source-specific responses to domain.Paper
//   - Skip malformed individual records rather than failing the whole call
//   - Return an error wrapping domain.ErrRateLimited on provider throttling,
//     so the orchestrator can record the distinguished condition
type Source interface {
	// Search queries the paper source for papers matching the given parameters.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this paper source.
	// Used for attribution, deduplication, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled
	// and available for searches. A source may be disabled due to
	// configuration or missing API keys.
	IsEnabled() bool
}

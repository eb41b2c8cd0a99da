// Package discovery is the top-level facade composing the orchestrator,
// enrichers, PDF resolver, and telemetry into a single Discover call.
//
// Discover never fails: provider errors are absorbed into per-source
// stats, and any panic in the pipeline is caught at this boundary and
// converted into an empty result with a logged error.
package discovery

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/enrich"
	"github.com/litscout/discovery-engine/internal/observability"
	"github.com/litscout/discovery-engine/internal/orchestrator"
)

// Searcher runs the provider fan-out and merge pipeline.
type Searcher interface {
	Search(ctx context.Context, req orchestrator.Request) *domain.DiscoveryResult
}

// PDFResolver resolves direct PDF URLs for a batch of papers in place.
type PDFResolver interface {
	ResolveAll(ctx context.Context, papers []*domain.Paper)
}

// Request is one discovery call.
type Request struct {
	Query          string
	MaxResults     int
	Sources        []domain.SourceType
	YearFrom       int
	YearTo         int
	OpenAccessOnly bool
	FastMode       bool
}

// Engine wires the discovery pipeline together.
type Engine struct {
	searcher     Searcher
	enrichers    []enrich.Enricher
	resolver     PDFResolver
	understander QueryUnderstander
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// New creates an engine. resolver, understander, and metrics may each be
// nil, disabling PDF resolution, the supplementary phase, and metrics
// respectively.
func New(searcher Searcher, enrichers []enrich.Enricher, resolver PDFResolver, understander QueryUnderstander, metrics *observability.Metrics, logger zerolog.Logger) *Engine {
	if metrics != nil {
		wrapped := make([]enrich.Enricher, len(enrichers))
		for i, e := range enrichers {
			wrapped[i] = meteredEnricher{inner: e, metrics: metrics}
		}
		enrichers = wrapped
	}
	return &Engine{
		searcher:     searcher,
		enrichers:    enrichers,
		resolver:     resolver,
		understander: understander,
		metrics:      metrics,
		logger:       logger,
	}
}

// meteredEnricher counts each enricher run's outcome.
type meteredEnricher struct {
	inner   enrich.Enricher
	metrics *observability.Metrics
}

func (m meteredEnricher) Name() string { return m.inner.Name() }

func (m meteredEnricher) Enrich(ctx context.Context, papers []*domain.Paper) error {
	err := m.inner.Enrich(ctx, papers)
	m.metrics.RecordEnrichment(m.inner.Name(), err)
	return err
}

// Discover runs the full discovery sequence for one query. It never
// returns an error: the worst case is an empty result whose source stats
// explain the shortfall.
func (e *Engine) Discover(ctx context.Context, req Request) (result *domain.DiscoveryResult) {
	start := time.Now()
	ctx, requestID := observability.EnsureRequestID(ctx)
	logger := observability.WithDiscoveryContext(e.logger, requestID, req.Query)

	// A defect anywhere below degrades to an empty result, never a crash.
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("discovery pipeline panicked")
			result = domain.EmptyResult()
		}
	}()

	if e.metrics != nil {
		e.metrics.RecordDiscoveryStarted()
	}

	if strings.TrimSpace(req.Query) == "" {
		logger.Warn().Msg("empty query")
		return domain.EmptyResult()
	}

	coreTerms := ExtractCoreTerms(req.Query)

	// Query understanding runs concurrently with the fan-out. The fan-out
	// always searches the original query; phrasings only feed the
	// supplementary phase.
	var phrasings <-chan []string
	if e.understander != nil {
		phrasings = e.understand(ctx, logger, req.Query)
	}

	result = e.searcher.Search(ctx, orchestrator.Request{
		Query:          req.Query,
		MaxResults:     req.MaxResults,
		Sources:        req.Sources,
		YearFrom:       req.YearFrom,
		YearTo:         req.YearTo,
		OpenAccessOnly: req.OpenAccessOnly,
		FastMode:       req.FastMode,
		CoreTerms:      coreTerms,
		Phrasings:      phrasings,
	})

	enrich.RunAll(ctx, logger, e.enrichers, result.Papers)

	// PDF resolution is skipped in fast mode: a latency/completeness
	// tradeoff the caller opted into.
	if !req.FastMode && e.resolver != nil {
		e.resolver.ResolveAll(ctx, result.Papers)
		e.recordResolutions(result.Papers)
	}

	// After resolution, open access means exactly one thing: a direct
	// PDF link exists.
	for _, p := range result.Papers {
		p.IsOpenAccess = p.PDFURL != ""
	}

	e.recordTelemetry(logger, result, coreTerms, time.Since(start))
	return result
}

// understand runs the query understander in the background, delivering at
// most one batch of phrasings. Failures are logged and dropped: the
// supplementary phase is strictly best-effort.
func (e *Engine) understand(ctx context.Context, logger zerolog.Logger, query string) <-chan []string {
	ch := make(chan []string, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("query understander panicked")
			}
		}()

		phrasings, err := e.understander.Understand(ctx, query)
		if err != nil {
			logger.Debug().Err(err).Msg("query understanding failed")
			return
		}
		if len(phrasings) > 0 {
			if e.metrics != nil {
				e.metrics.RecordSupplementaryPhrasings(len(phrasings))
			}
			ch <- phrasings
		}
	}()
	return ch
}

// recordResolutions counts per-paper resolution outcomes.
func (e *Engine) recordResolutions(papers []*domain.Paper) {
	if e.metrics == nil {
		return
	}
	for _, p := range papers {
		if p.PDFURL != "" {
			e.metrics.RecordPDFResolution("resolved")
		} else {
			e.metrics.RecordPDFResolution("exhausted")
		}
	}
}

// recordTelemetry emits the aggregate log line and metrics for one call.
func (e *Engine) recordTelemetry(logger zerolog.Logger, result *domain.DiscoveryResult, coreTerms []string, elapsed time.Duration) {
	rateLimited := 0
	for _, s := range result.SourceStats {
		if s.Status == domain.StatusRateLimited {
			rateLimited++
		}
	}
	var rateLimitedFraction float64
	if len(result.SourceStats) > 0 {
		rateLimitedFraction = float64(rateLimited) / float64(len(result.SourceStats))
	}

	logger.Info().
		Int("papers", len(result.Papers)).
		Int("sources", len(result.SourceStats)).
		Float64("rate_limited_fraction", rateLimitedFraction).
		Float64("core_term_presence", coreTermPresence(result.Papers, coreTerms)).
		Dur("elapsed", elapsed).
		Msg("discovery completed")

	if e.metrics != nil {
		e.metrics.RecordDiscoveryCompleted(len(result.Papers), elapsed.Seconds())
	}
}

// Package orchestrator coordinates the concurrent provider fan-out and
// the merge/filter/rank pipeline behind a discovery call.
//
// Per call the pipeline is: dispatch one task per active source, collect
// completions as they arrive into a unique-key merge, optionally early-exit
// in fast mode, drain all outstanding tasks, run a second title-hash dedup
// sweep, apply the deterministic hard filter, rank, gate on core-term
// presence, apply the relevance floor, and rerank for source diversity.
//
// No single provider failure, timeout or rate limit can fail the call:
// the worst case is zero papers with full per-source stats explaining why.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/observability"
	"github.com/litscout/discovery-engine/internal/papersources"
	"github.com/litscout/discovery-engine/internal/rank"
)

// Request describes one discovery call.
type Request struct {
	// Query is the original free-text query. The fan-out always uses the
	// original query, never a rewritten one.
	Query string

	// MaxResults caps the returned paper list.
	MaxResults int

	// Sources optionally restricts the fan-out to a subset of providers.
	// Empty means all enabled providers.
	Sources []domain.SourceType

	// YearFrom and YearTo bound the publication year (0 means unbounded).
	YearFrom int
	YearTo   int

	// OpenAccessOnly requires an open-access signal on every result.
	OpenAccessOnly bool

	// FastMode shortens timeouts and enables early exit.
	FastMode bool

	// CoreTerms are the core query terms extracted by the facade; they
	// drive the concept gate.
	CoreTerms []string

	// Phrasings optionally delivers alternate search-term phrasings from
	// query understanding, which runs concurrently with the main fan-out.
	// A nil channel disables the supplementary phase.
	Phrasings <-chan []string
}

// Orchestrator owns the search-fanout limiter and the merge pipeline.
type Orchestrator struct {
	registry *papersources.Registry
	ranker   rank.Ranker
	fallback rank.Ranker
	limiter  *semaphore.Weighted
	config   Config
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// New creates an orchestrator. The ranker may be nil, in which case the
// heuristic fallback is used for every call; metrics may be nil.
func New(registry *papersources.Registry, ranker rank.Ranker, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if ranker == nil {
		ranker = rank.NewHeuristicRanker()
	}
	return &Orchestrator{
		registry: registry,
		ranker:   ranker,
		fallback: rank.NewHeuristicRanker(),
		limiter:  semaphore.NewWeighted(int64(cfg.MaxConcurrentSearches)),
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// taskResult is one finished provider task.
type taskResult struct {
	stats  domain.SourceStats
	papers []*domain.Paper
}

// Search runs the full pipeline and returns the ranked, capped result.
func (o *Orchestrator) Search(ctx context.Context, req Request) *domain.DiscoveryResult {
	start := time.Now()
	if req.MaxResults <= 0 {
		req.MaxResults = 10
	}

	sources := o.registry.Resolve(req.Sources)
	if len(sources) == 0 {
		o.logger.Warn().Str("query", req.Query).Msg("no enabled sources for discovery call")
		return domain.EmptyResult()
	}

	params := papersources.SearchParams{
		Query:          req.Query,
		MaxResults:     req.MaxResults,
		YearFrom:       req.YearFrom,
		YearTo:         req.YearTo,
		OpenAccessOnly: req.OpenAccessOnly,
	}

	merged := make(map[string]*domain.Paper)
	stats := o.fanOut(ctx, sources, params, req.FastMode, req.MaxResults, merged)
	mergedAfterFanOut := len(merged)

	o.supplementaryPhase(ctx, req, merged)

	papers := valuesOf(merged)
	preDedup := len(papers)
	papers = dedupByTitle(papers)
	dedupCount := len(papers)

	papers = hardFilter(papers, req.YearFrom, req.YearTo, req.OpenAccessOnly)
	filteredCount := len(papers)

	if o.metrics != nil {
		o.metrics.RecordPapersMerged(preDedup)
		o.metrics.RecordPapersDeduplicated(preDedup - dedupCount)
		o.metrics.RecordPapersFiltered(dedupCount - filteredCount)
	}

	papers = o.rank(ctx, papers, req)
	papers = o.conceptGate(papers, req.CoreTerms)
	papers = o.relevanceFloor(papers)
	papers = o.diversityRerank(papers, req.MaxResults)

	if len(papers) > req.MaxResults {
		papers = papers[:req.MaxResults]
	}

	o.logger.Info().
		Str("query", req.Query).
		Int("merged", mergedAfterFanOut).
		Int("after_dedup", dedupCount).
		Int("after_filter", filteredCount).
		Int("returned", len(papers)).
		Dur("elapsed", time.Since(start)).
		Msg("discovery pipeline complete")

	return &domain.DiscoveryResult{Papers: papers, SourceStats: stats}
}

// fanOut dispatches one task per source and consumes completions in
// arrival order, merging successes into the unique-key map. In fast mode
// an early exit stops threshold evaluation once the merged set is
// sufficient; outstanding tasks are still drained to completion so their
// papers and stats are never lost.
func (o *Orchestrator) fanOut(ctx context.Context, sources []papersources.Source, params papersources.SearchParams, fastMode bool, maxResults int, merged map[string]*domain.Paper) []domain.SourceStats {
	timeout := o.config.SearchTimeout
	if fastMode {
		timeout = o.config.FastSearchTimeout
	}

	results := make(chan taskResult, len(sources))
	for _, src := range sources {
		go o.runTask(ctx, src, params, timeout, results)
	}

	start := time.Now()
	stats := make([]domain.SourceStats, 0, len(sources))
	contributed := make(map[domain.SourceType]bool)
	earlyExited := false

	for range sources {
		res := <-results
		stats = append(stats, res.stats)

		if res.stats.Status == domain.StatusSuccess {
			mergeInto(merged, res.papers)
			if len(res.papers) > 0 {
				contributed[res.stats.Source] = true
			}
		}

		if fastMode && !earlyExited &&
			len(contributed) >= o.config.EarlyExitMinSources &&
			len(merged) >= maxResults &&
			time.Since(start) >= o.config.EarlyExitFloor {
			earlyExited = true
			o.logger.Debug().
				Int("sources_contributed", len(contributed)).
				Int("merged", len(merged)).
				Dur("elapsed", time.Since(start)).
				Msg("early exit threshold reached, draining remaining tasks")
		}
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Source < stats[j].Source })
	return stats
}

// runTask executes one provider search under the shared limiter and a
// per-call timeout, classifying the outcome into SourceStats.
func (o *Orchestrator) runTask(ctx context.Context, src papersources.Source, params papersources.SearchParams, timeout time.Duration, results chan<- taskResult) {
	start := time.Now()
	stats := domain.SourceStats{Source: src.SourceType(), Status: domain.StatusPending}
	if o.metrics != nil {
		o.metrics.RecordSearchStarted(string(stats.Source))
		defer func() {
			o.metrics.RecordSearchOutcome(string(stats.Source), string(stats.Status), stats.Count, stats.Elapsed.Seconds())
		}()
	}

	if err := o.limiter.Acquire(ctx, 1); err != nil {
		stats.Status = domain.StatusError
		stats.ErrorMessage = err.Error()
		stats.Elapsed = time.Since(start)
		results <- taskResult{stats: stats}
		return
	}
	defer o.limiter.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := src.Search(callCtx, params)
	stats.Elapsed = time.Since(start)

	switch {
	case err == nil:
		stats.Status = domain.StatusSuccess
		stats.Count = len(res.Papers)
		results <- taskResult{stats: stats, papers: res.Papers}
		return
	case errors.Is(err, domain.ErrRateLimited):
		stats.Status = domain.StatusRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		stats.Status = domain.StatusTimeout
	default:
		stats.Status = domain.StatusError
	}
	stats.ErrorMessage = err.Error()

	o.logger.Warn().
		Str("source", string(stats.Source)).
		Str("status", string(stats.Status)).
		Dur("elapsed", stats.Elapsed).
		Err(err).
		Msg("provider task failed")

	results <- taskResult{stats: stats}
}

// supplementaryPhase waits briefly for query-understanding phrasings and,
// when they arrive, runs a smaller fast-provider-only fan-out per phrasing,
// merging new papers in. Supplementary stats are logged, not returned:
// the primary fan-out already accounts for every provider.
func (o *Orchestrator) supplementaryPhase(ctx context.Context, req Request, merged map[string]*domain.Paper) {
	if req.Phrasings == nil {
		return
	}

	var phrasings []string
	select {
	case p, ok := <-req.Phrasings:
		if ok {
			phrasings = p
		}
	case <-time.After(o.config.SupplementaryWait):
		o.logger.Debug().Msg("query understanding did not deliver phrasings in time")
		return
	case <-ctx.Done():
		return
	}
	if len(phrasings) == 0 {
		return
	}

	fast := o.registry.Resolve(o.config.FastSources)
	if len(fast) == 0 {
		return
	}

	perPhrasing := req.MaxResults / 2
	if perPhrasing < 5 {
		perPhrasing = 5
	}

	before := len(merged)
	for _, phrasing := range phrasings {
		if ctx.Err() != nil {
			return
		}
		params := papersources.SearchParams{
			Query:          phrasing,
			MaxResults:     perPhrasing,
			YearFrom:       req.YearFrom,
			YearTo:         req.YearTo,
			OpenAccessOnly: req.OpenAccessOnly,
		}
		o.fanOut(ctx, fast, params, true, perPhrasing, merged)
	}

	o.logger.Debug().
		Int("phrasings", len(phrasings)).
		Int("new_papers", len(merged)-before).
		Msg("supplementary fan-out complete")
}

// rank applies the configured ranker, degrading to the heuristic fallback
// when the ranker fails. Ranking never fails the call.
func (o *Orchestrator) rank(ctx context.Context, papers []*domain.Paper, req Request) []*domain.Paper {
	if len(papers) == 0 {
		return papers
	}

	rankReq := rank.Request{Query: req.Query, CoreTerms: req.CoreTerms}

	ranked, err := o.ranker.Rank(ctx, papers, rankReq)
	if err == nil {
		return ranked
	}

	o.logger.Warn().
		Err(err).
		Str("ranker", o.ranker.Name()).
		Msg("ranker failed, falling back to heuristic")

	ranked, err = o.fallback.Rank(ctx, papers, rankReq)
	if err != nil {
		// The heuristic ranker cannot fail; keep the unranked order
		// rather than dropping anything.
		return papers
	}
	return ranked
}

// Package pdfresolver best-effort resolves a directly fetchable PDF URL
// for each paper in a batch.
//
// Per paper the state machine is: candidate generation from host-aware
// heuristics, verification (metadata probe, partial-content sniff, HTML
// scrape bounded to depth 2), then an open-access lookup fallback keyed
// by DOI. Exhaustion is a normal outcome: the paper simply keeps an
// empty PDF URL.
package pdfresolver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/unpaywall"
)

// Config holds the resolver's tunables.
type Config struct {
	// MaxConcurrentProbes bounds simultaneous per-paper resolutions.
	// This limiter is independent from the search-fanout limiter: a
	// batch may hold dozens of papers, each issuing several probes.
	MaxConcurrentProbes int

	// ProbeTimeout is the budget for a single HTTP probe.
	ProbeTimeout time.Duration

	// UserAgent is sent on every probe.
	UserAgent string
}

// Defaults for the resolver.
const (
	DefaultMaxConcurrentProbes = 16
	DefaultProbeTimeout        = 10 * time.Second
	defaultUserAgent           = "discovery-engine/1.0 (pdf-resolver)"
)

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MaxConcurrentProbes <= 0 {
		c.MaxConcurrentProbes = DefaultMaxConcurrentProbes
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// OALookup is the open-access fallback used when no candidate verifies.
type OALookup interface {
	Lookup(ctx context.Context, doi string) (*unpaywall.Location, error)
	Enabled() bool
}

// Resolver resolves PDF URLs for batches of papers.
type Resolver struct {
	config     Config
	httpClient *http.Client
	oaLookup   OALookup
	limiter    *semaphore.Weighted
	logger     zerolog.Logger
}

// New creates a resolver. oaLookup may be nil, disabling the fallback.
func New(cfg Config, oaLookup OALookup, logger zerolog.Logger) *Resolver {
	cfg.applyDefaults()
	return &Resolver{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ProbeTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrentProbes * 2,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		oaLookup: oaLookup,
		limiter:  semaphore.NewWeighted(int64(cfg.MaxConcurrentProbes)),
		logger:   logger,
	}
}

// ResolveAll resolves every paper in the batch under the probe limiter
// and blocks until all resolutions reach their natural conclusion or
// timeout. There is no early exit for PDF resolution.
func (r *Resolver) ResolveAll(ctx context.Context, papers []*domain.Paper) {
	var wg sync.WaitGroup
	for _, p := range papers {
		wg.Add(1)
		go func(p *domain.Paper) {
			defer wg.Done()
			if err := r.limiter.Acquire(ctx, 1); err != nil {
				return
			}
			defer r.limiter.Release(1)
			r.resolve(ctx, p)
		}(p)
	}
	wg.Wait()
}

// resolve runs the per-paper state machine, mutating PDFURL in place.
func (r *Resolver) resolve(ctx context.Context, p *domain.Paper) {
	// An advertised PDF link is trusted as-is unless its host has a
	// history of serving HTML at PDF-looking URLs.
	if p.PDFURL != "" {
		if !isDistrustedHost(p.PDFURL) {
			return
		}
		v, err := r.verify(ctx, p.PDFURL)
		if err == nil && v.isPDF {
			return
		}
		r.logger.Debug().
			Str("url", p.PDFURL).
			Str("title", p.Title).
			Msg("advertised pdf link on distrusted host failed verification")
		p.PDFURL = ""
	}

	// Only open-flagged papers or papers on known-open hosts get
	// candidates generated; probing paywalled hosts is wasted work.
	if p.IsOpenAccess || isOpenHost(p.URL) || p.OpenAccessURL != "" {
		seeds := generateCandidates(p.URL, p.DOI)
		if p.OpenAccessURL != "" {
			seeds = append([]string{p.OpenAccessURL}, seeds...)
		}
		if found := r.verifyChain(ctx, seeds); found != "" {
			p.PDFURL = found
			return
		}
	}

	if found := r.fallbackLookup(ctx, p.DOI); found != "" {
		p.PDFURL = found
		return
	}

	// Resolution exhausted: a normal outcome, not an error.
	r.logger.Debug().Str("title", p.Title).Msg("pdf resolution exhausted")
}

// verifyChain verifies candidates breadth-first, following links
// extracted from HTML pages up to maxScrapeDepth, with a visited set to
// break cycles.
func (r *Resolver) verifyChain(ctx context.Context, seeds []string) string {
	visited := make(map[string]bool)
	frontier := seeds

	for depth := 0; depth <= maxScrapeDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, candidate := range frontier {
			if visited[candidate] || ctx.Err() != nil {
				continue
			}
			visited[candidate] = true

			v, err := r.verify(ctx, candidate)
			if err != nil {
				continue
			}
			if v.isPDF {
				return candidate
			}
			next = append(next, v.links...)
		}
		frontier = next
	}
	return ""
}

// fallbackLookup queries the open-access location service by DOI.
func (r *Resolver) fallbackLookup(ctx context.Context, doi string) string {
	if doi == "" || r.oaLookup == nil || !r.oaLookup.Enabled() {
		return ""
	}

	loc, err := r.oaLookup.Lookup(ctx, doi)
	if err != nil {
		r.logger.Debug().Err(err).Str("doi", doi).Msg("open-access fallback lookup failed")
		return ""
	}
	if loc == nil {
		return ""
	}
	return loc.PDFURL
}

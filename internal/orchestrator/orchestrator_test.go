package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

// fakeSource is a scriptable Source for pipeline tests.
type fakeSource struct {
	sourceType domain.SourceType
	papers     []*domain.Paper
	err        error
	delay      time.Duration
	onCall     func()
}

func (f *fakeSource) Search(ctx context.Context, _ papersources.SearchParams) (*papersources.SearchResult, error) {
	if f.onCall != nil {
		f.onCall()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &papersources.SearchResult{Papers: f.papers, Source: f.sourceType}, nil
}

func (f *fakeSource) SourceType() domain.SourceType { return f.sourceType }
func (f *fakeSource) Name() string                  { return string(f.sourceType) }
func (f *fakeSource) IsEnabled() bool               { return true }

func paper(title string, source domain.SourceType, opts ...func(*domain.Paper)) *domain.Paper {
	p := &domain.Paper{Title: title, Source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func withDOI(doi string) func(*domain.Paper)  { return func(p *domain.Paper) { p.DOI = doi } }
func withYear(y int) func(*domain.Paper)      { return func(p *domain.Paper) { p.Year = y } }
func withPDF(url string) func(*domain.Paper)  { return func(p *domain.Paper) { p.PDFURL = url } }
func withScore(s float64) func(*domain.Paper) { return func(p *domain.Paper) { p.RelevanceScore = s } }

func newTestOrchestrator(cfg Config, sources ...papersources.Source) *Orchestrator {
	registry := papersources.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}
	return New(registry, nil, cfg, nil, zerolog.Nop())
}

func TestMergeInto_OrderIndependent(t *testing.T) {
	sparse := paper("Same Work", domain.SourceArxiv, withDOI("10.1/same"))
	complete := paper("Same Work", domain.SourceCrossref, withDOI("10.1/same"),
		withYear(2021), withPDF("https://x/p.pdf"), func(p *domain.Paper) {
			p.Authors = []string{"A B"}
			p.Abstract = "An abstract comfortably longer than fifty characters for scoring."
		})

	forward := make(map[string]*domain.Paper)
	mergeInto(forward, []*domain.Paper{sparse, complete})

	backward := make(map[string]*domain.Paper)
	mergeInto(backward, []*domain.Paper{complete, sparse})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Same(t, complete, forward[complete.UniqueKey()])
	assert.Same(t, complete, backward[complete.UniqueKey()])
}

func TestMergeInto_EqualCompletenessIsDeterministic(t *testing.T) {
	a := paper("Same Work", domain.SourceOpenAlex, withDOI("10.1/tie"))
	b := paper("Same Work", domain.SourcePubMed, withDOI("10.1/tie"))

	forward := make(map[string]*domain.Paper)
	mergeInto(forward, []*domain.Paper{a, b})

	backward := make(map[string]*domain.Paper)
	mergeInto(backward, []*domain.Paper{b, a})

	assert.Same(t, forward[a.UniqueKey()], backward[a.UniqueKey()],
		"tie-break must not depend on arrival order")
}

func TestDedupByTitle_CollapsesDifferentKeys(t *testing.T) {
	// A DOI-bearing copy and a DOI-less preprint of the same work survive
	// the unique-key merge under different keys.
	published := paper("Attention Is All You Need", domain.SourceCrossref,
		withDOI("10.5555/attn"), withYear(2017))
	preprint := paper("Attention is all you need", domain.SourceArxiv)

	out := dedupByTitle([]*domain.Paper{preprint, published})
	require.Len(t, out, 1)
	assert.Same(t, published, out[0], "higher completeness wins")
}

func TestHardFilter_Years(t *testing.T) {
	papers := []*domain.Paper{
		paper("too old", domain.SourceArxiv, withYear(2019)),
		paper("no year", domain.SourceArxiv),
		paper("in range", domain.SourceArxiv, withYear(2021)),
		paper("too new", domain.SourceArxiv, withYear(2024)),
	}

	out := hardFilter(papers, 2020, 2023, false)
	require.Len(t, out, 1)
	assert.Equal(t, "in range", out[0].Title)
}

func TestHardFilter_OpenAccess(t *testing.T) {
	closed := paper("closed", domain.SourceScopus)
	pdfOnly := paper("pdf only", domain.SourceScopus, withPDF("https://x/p.pdf"))
	flagged := paper("flagged", domain.SourceArxiv, func(p *domain.Paper) { p.IsOpenAccess = true })

	out := hardFilter([]*domain.Paper{closed, pdfOnly, flagged}, 0, 0, true)
	require.Len(t, out, 2)
	assert.Equal(t, "pdf only", out[0].Title, "a PDF URL is an open-access signal even without the flag")
	assert.Equal(t, "flagged", out[1].Title)
}

func TestHardFilter_NoBoundsKeepsYearless(t *testing.T) {
	out := hardFilter([]*domain.Paper{paper("no year", domain.SourceArxiv)}, 0, 0, false)
	assert.Len(t, out, 1)
}

func TestRelevanceFloor_Bypass(t *testing.T) {
	o := newTestOrchestrator(Config{})

	papers := make([]*domain.Paper, 6)
	for i := range papers {
		papers[i] = paper(fmt.Sprintf("low %d", i), domain.SourceArxiv, withScore(0.1))
	}

	out := o.relevanceFloor(papers)
	require.Len(t, out, 5, "floor bypassed, top 5 pre-floor papers returned")
	assert.Equal(t, "low 0", out[0].Title)
}

func TestRelevanceFloor_DropsLowScores(t *testing.T) {
	o := newTestOrchestrator(Config{})

	papers := []*domain.Paper{
		paper("good 1", domain.SourceArxiv, withScore(0.9)),
		paper("good 2", domain.SourceArxiv, withScore(0.8)),
		paper("good 3", domain.SourceArxiv, withScore(0.7)),
		paper("good 4", domain.SourceArxiv, withScore(0.6)),
		paper("good 5", domain.SourceArxiv, withScore(0.5)),
		paper("bad", domain.SourceArxiv, withScore(0.1)),
	}

	out := o.relevanceFloor(papers)
	require.Len(t, out, 5)
	for _, p := range out {
		assert.NotEqual(t, "bad", p.Title)
	}
}

func TestRelevanceFloor_FewCandidatesNoBypass(t *testing.T) {
	o := newTestOrchestrator(Config{})

	papers := []*domain.Paper{
		paper("low 1", domain.SourceArxiv, withScore(0.1)),
		paper("low 2", domain.SourceArxiv, withScore(0.1)),
	}

	out := o.relevanceFloor(papers)
	assert.Empty(t, out, "bypass needs at least FloorBypassCount candidates pre-floor")
}

func TestDiversityRerank_CapAndDefer(t *testing.T) {
	o := newTestOrchestrator(Config{})

	var papers []*domain.Paper
	for i := 0; i < 20; i++ {
		papers = append(papers, paper(fmt.Sprintf("mono %d", i), domain.SourceArxiv, withScore(1-float64(i)/100)))
	}
	other := paper("other source", domain.SourceOpenAlex, withScore(0.01))
	papers = append(papers, other)

	out := o.diversityRerank(papers, 10)
	require.Len(t, out, 21, "diversity rerank reorders, never drops")

	// ceil(0.4*10) = 4 from the dominant source, then the other source,
	// then the deferred overflow.
	for i := 0; i < 4; i++ {
		assert.Equal(t, domain.SourceArxiv, out[i].Source)
	}
	assert.Same(t, other, out[4], "the low-scoring minority source precedes deferred overflow")
	assert.Equal(t, "mono 4", out[5].Title)

	// The orchestrator caps at maxResults afterwards; the head must fill
	// every slot even though diversity was not achievable.
	head := out[:10]
	assert.Len(t, head, 10)
}

func TestConceptGate_PenalizesMissingTerms(t *testing.T) {
	o := newTestOrchestrator(Config{})

	onTopic := paper("transformer attention mechanisms in translation", domain.SourceArxiv, withScore(0.5))
	offTopic := paper("soil erosion in river deltas", domain.SourceArxiv, withScore(0.9))

	out := o.conceptGate([]*domain.Paper{offTopic, onTopic},
		[]string{"transformer", "attention", "translation"})

	assert.Same(t, onTopic, out[0], "off-topic paper is gated below on-topic one")
	assert.InDelta(t, 0.0, offTopic.RelevanceScore, 1e-9, "zero core terms present zeroes the score")
	assert.InDelta(t, 0.5, onTopic.RelevanceScore, 1e-9, "full presence leaves the score untouched")
}

func TestConceptGate_InactiveBelowMinTerms(t *testing.T) {
	o := newTestOrchestrator(Config{})

	p := paper("anything", domain.SourceArxiv, withScore(0.9))
	out := o.conceptGate([]*domain.Paper{p}, []string{"one", "two"})
	assert.InDelta(t, 0.9, out[0].RelevanceScore, 1e-9)
}

func TestSearch_DrainAfterEarlyExit(t *testing.T) {
	var sources []papersources.Source
	fastTypes := []domain.SourceType{domain.SourceArxiv, domain.SourceOpenAlex, domain.SourceCrossref}
	for i, st := range fastTypes {
		var papers []*domain.Paper
		for j := 0; j < 4; j++ {
			papers = append(papers, paper(fmt.Sprintf("fast %d-%d", i, j), st, withYear(2021)))
		}
		sources = append(sources, &fakeSource{sourceType: st, papers: papers})
	}
	slowTypes := []domain.SourceType{domain.SourcePubMed, domain.SourceEuropePMC}
	for i, st := range slowTypes {
		sources = append(sources, &fakeSource{
			sourceType: st,
			delay:      150 * time.Millisecond,
			papers:     []*domain.Paper{paper(fmt.Sprintf("slow %d", i), st, withYear(2021))},
		})
	}

	o := newTestOrchestrator(Config{
		MaxConcurrentSearches: 5,
		EarlyExitFloor:        time.Millisecond,
	}, sources...)

	result := o.Search(context.Background(), Request{
		Query:      "q",
		MaxResults: 5,
		FastMode:   true,
	})

	require.Len(t, result.SourceStats, 5, "slow providers still appear in stats after early exit")
	counts := make(map[domain.SourceType]int)
	for _, s := range result.SourceStats {
		assert.Equal(t, domain.StatusSuccess, s.Status)
		counts[s.Source] = s.Count
	}
	assert.Equal(t, 1, counts[domain.SourcePubMed])
	assert.Equal(t, 1, counts[domain.SourceEuropePMC])
}

func TestSearch_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0

	var sources []papersources.Source
	for _, st := range domain.AllSourceTypes() {
		st := st
		sources = append(sources, &fakeSource{
			sourceType: st,
			delay:      30 * time.Millisecond,
			papers:     []*domain.Paper{paper("p "+string(st), st)},
			onCall: func() {
				mu.Lock()
				inflight++
				if inflight > peak {
					peak = inflight
				}
				mu.Unlock()
				defer func() {
					mu.Lock()
					inflight--
					mu.Unlock()
				}()
				time.Sleep(20 * time.Millisecond)
			},
		})
	}

	o := newTestOrchestrator(Config{MaxConcurrentSearches: 3}, sources...)

	o.Search(context.Background(), Request{Query: "q", MaxResults: 10})

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3, "in-flight provider calls must respect the limiter")
}

func TestSearch_ProviderFailuresNeverFailTheCall(t *testing.T) {
	survivor := paper("survivor", domain.SourceCrossref, withYear(2024),
		withPDF("https://x/s.pdf"), func(p *domain.Paper) { p.CitationCount = 300 })
	sources := []papersources.Source{
		&fakeSource{sourceType: domain.SourceArxiv, err: domain.NewRateLimitError("arXiv", 0)},
		&fakeSource{sourceType: domain.SourceOpenAlex, err: fmt.Errorf("connection refused")},
		&fakeSource{sourceType: domain.SourceCrossref, papers: []*domain.Paper{survivor}},
	}

	o := newTestOrchestrator(Config{}, sources...)

	result := o.Search(context.Background(), Request{Query: "q", MaxResults: 5})

	require.Len(t, result.Papers, 1)
	assert.Equal(t, "survivor", result.Papers[0].Title)

	statuses := make(map[domain.SourceType]domain.SourceStatus)
	for _, s := range result.SourceStats {
		statuses[s.Source] = s.Status
	}
	assert.Equal(t, domain.StatusRateLimited, statuses[domain.SourceArxiv])
	assert.Equal(t, domain.StatusError, statuses[domain.SourceOpenAlex])
	assert.Equal(t, domain.StatusSuccess, statuses[domain.SourceCrossref])
}

func TestSearch_TimeoutRecordedAsTimeout(t *testing.T) {
	src := &fakeSource{
		sourceType: domain.SourceArxiv,
		delay:      200 * time.Millisecond,
		papers:     []*domain.Paper{paper("late", domain.SourceArxiv)},
	}

	o := newTestOrchestrator(Config{SearchTimeout: 20 * time.Millisecond}, src)

	result := o.Search(context.Background(), Request{Query: "q", MaxResults: 5})
	require.Len(t, result.SourceStats, 1)
	assert.Equal(t, domain.StatusTimeout, result.SourceStats[0].Status)
	assert.Empty(t, result.Papers)
}

func TestSearch_SupplementaryPhrasings(t *testing.T) {
	var mu sync.Mutex
	queries := make(map[string]int)

	primary := &fakeSource{sourceType: domain.SourcePubMed, papers: []*domain.Paper{
		paper("primary hit", domain.SourcePubMed, withYear(2025),
			withPDF("https://x/1.pdf"), func(p *domain.Paper) { p.CitationCount = 100 }),
	}}
	fast := &recordingSource{
		sourceType: domain.SourceArxiv,
		record: func(q string) {
			mu.Lock()
			queries[q]++
			mu.Unlock()
		},
		papers: []*domain.Paper{paper("phrasing hit", domain.SourceArxiv, withYear(2025),
			withPDF("https://x/2.pdf"), func(p *domain.Paper) { p.CitationCount = 100 })},
	}

	o := newTestOrchestrator(Config{
		FastSources: []domain.SourceType{domain.SourceArxiv},
	}, primary, fast)

	phrasings := make(chan []string, 1)
	phrasings <- []string{"alternate phrasing"}

	result := o.Search(context.Background(), Request{
		Query:      "original query",
		MaxResults: 10,
		Phrasings:  phrasings,
	})

	mu.Lock()
	assert.Equal(t, 1, queries["original query"], "primary fan-out uses the original query")
	assert.Equal(t, 1, queries["alternate phrasing"], "supplementary fan-out uses the phrasing")
	mu.Unlock()

	titles := make(map[string]bool)
	for _, p := range result.Papers {
		titles[p.Title] = true
	}
	assert.True(t, titles["primary hit"])
	assert.True(t, titles["phrasing hit"], "supplementary results are merged in")
}

// recordingSource captures the queries it receives.
type recordingSource struct {
	sourceType domain.SourceType
	papers     []*domain.Paper
	record     func(query string)
}

func (r *recordingSource) Search(_ context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	r.record(params.Query)
	return &papersources.SearchResult{Papers: r.papers, Source: r.sourceType}, nil
}

func (r *recordingSource) SourceType() domain.SourceType { return r.sourceType }
func (r *recordingSource) Name() string                  { return string(r.sourceType) }
func (r *recordingSource) IsEnabled() bool               { return true }

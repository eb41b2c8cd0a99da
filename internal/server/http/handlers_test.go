package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/discovery-engine/internal/discovery"
	"github.com/litscout/discovery-engine/internal/domain"
)

type fakeEngine struct {
	result   *domain.DiscoveryResult
	captured discovery.Request
	calls    int
}

func (f *fakeEngine) Discover(_ context.Context, req discovery.Request) *domain.DiscoveryResult {
	f.calls++
	f.captured = req
	if f.result == nil {
		return domain.EmptyResult()
	}
	return f.result
}

func newTestServer(engine DiscoveryEngine) *Server {
	return NewServer(Config{Address: "127.0.0.1:0"}, engine, zerolog.Nop())
}

func postDiscover(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestDiscoverHandler_Success(t *testing.T) {
	engine := &fakeEngine{result: &domain.DiscoveryResult{
		Papers: []*domain.Paper{
			{
				Title:          "Attention Is All You Need",
				Authors:        []string{"Vaswani"},
				Year:           2017,
				Source:         domain.SourceArxiv,
				PDFURL:         "https://arxiv.org/pdf/1706.03762",
				IsOpenAccess:   true,
				CitationCount:  90000,
				RelevanceScore: 0.93,
			},
		},
		SourceStats: []domain.SourceStats{
			{Source: domain.SourceArxiv, Count: 1, Status: domain.StatusSuccess, Elapsed: 1200 * time.Millisecond},
			{Source: domain.SourcePubMed, Status: domain.StatusRateLimited, ErrorMessage: "429"},
		},
	}}
	s := newTestServer(engine)

	rec := postDiscover(t, s, `{"query": "transformer architectures", "max_results": 5}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp discoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "Attention Is All You Need", resp.Papers[0].Title)
	assert.Equal(t, "arxiv", resp.Papers[0].Source)
	assert.True(t, resp.Papers[0].IsOpenAccess)

	require.Len(t, resp.SourceStats, 2)
	assert.Equal(t, int64(1200), resp.SourceStats[0].ElapsedMs)
	assert.Equal(t, "rate_limited", resp.SourceStats[1].Status)

	assert.Equal(t, "transformer architectures", engine.captured.Query)
	assert.Equal(t, 5, engine.captured.MaxResults)
}

func TestDiscoverHandler_DefaultsMaxResults(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	rec := postDiscover(t, s, `{"query": "protein folding"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultMaxResults, engine.captured.MaxResults)
}

func TestDiscoverHandler_SourceFilter(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	rec := postDiscover(t, s, `{"query": "protein folding", "sources": ["arxiv", "PubMed"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.SourceType{domain.SourceArxiv, domain.SourcePubMed}, engine.captured.Sources)
}

func TestDiscoverHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "invalid json",
			body: `{"query": `,
			want: "invalid JSON",
		},
		{
			name: "missing query",
			body: `{"max_results": 5}`,
			want: "query is required",
		},
		{
			name: "query too short",
			body: `{"query": "ab"}`,
			want: "query must be at least 3",
		},
		{
			name: "max_results too high",
			body: `{"query": "protein folding", "max_results": 1000}`,
			want: "max_results must be at most 100",
		},
		{
			name: "unknown source",
			body: `{"query": "protein folding", "sources": ["google_scholar"]}`,
			want: "unknown source: google_scholar",
		},
		{
			name: "inverted year range",
			body: `{"query": "protein folding", "year_from": 2020, "year_to": 2010}`,
			want: "year_to must not precede year_from",
		},
	}

	engine := &fakeEngine{}
	s := newTestServer(engine)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postDiscover(t, s, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tt.want)
		})
	}
	assert.Zero(t, engine.calls, "invalid requests never reach the engine")
}

func TestDiscoverHandler_FastModePassedThrough(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	rec := postDiscover(t, s, `{"query": "protein folding", "fast_mode": true, "open_access_only": true, "year_from": 2019, "year_to": 2024}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, engine.captured.FastMode)
	assert.True(t, engine.captured.OpenAccessOnly)
	assert.Equal(t, 2019, engine.captured.YearFrom)
	assert.Equal(t, 2024, engine.captured.YearTo)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(Config{Address: "127.0.0.1:0", MetricsEnabled: true}, &fakeEngine{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

package pdfresolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/unpaywall"
)

func newTestResolver(oa OALookup) *Resolver {
	return New(Config{MaxConcurrentProbes: 4}, oa, zerolog.Nop())
}

func TestGenerateCandidates(t *testing.T) {
	tests := []struct {
		name    string
		landing string
		doi     string
		want    []string
	}{
		{
			name:    "arxiv abs to pdf",
			landing: "https://arxiv.org/abs/2301.12345",
			want:    []string{"https://arxiv.org/pdf/2301.12345"},
		},
		{
			name:    "ieee stamp endpoint",
			landing: "https://ieeexplore.ieee.org/document/9000001",
			want:    []string{"https://ieeexplore.ieee.org/stamp/stamp.jsp?tp=&arnumber=9000001"},
		},
		{
			name:    "sciencedirect pii delivery",
			landing: "https://www.sciencedirect.com/science/article/pii/S0000000000000001",
			want:    []string{"https://www.sciencedirect.com/science/article/pii/S0000000000000001/pdfft?isDTMRedir=true&download=true"},
		},
		{
			name:    "acm doi pdf substitution",
			landing: "https://dl.acm.org/doi/10.1145/3297280",
			want:    []string{"https://dl.acm.org/doi/pdf/10.1145/3297280"},
		},
		{
			name: "doi only",
			doi:  "10.1234/x",
			want: []string{"https://doi.org/10.1234/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateCandidates(tt.landing, tt.doi)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestResolve_TrustsAdvertisedPDF(t *testing.T) {
	r := newTestResolver(nil)

	p := &domain.Paper{Title: "T", PDFURL: "https://publisher.example/paper.pdf"}
	r.resolve(context.Background(), p)

	assert.Equal(t, "https://publisher.example/paper.pdf", p.PDFURL,
		"ordinary hosts are trusted without a probe")
}

func TestResolve_DistrustedHostNeverAcceptsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!doctype html><html><body>sign up to download</body></html>"))
	}))
	defer server.Close()

	r := newTestResolver(nil)

	// Point the distrusted host at the test server.
	serverURL, _ := url.Parse(server.URL)
	r.httpClient.Transport = rewriteHost(serverURL.Host)

	p := &domain.Paper{
		Title:  "T",
		PDFURL: "http://www.researchgate.net/profile/fake/paper.pdf",
	}
	r.resolve(context.Background(), p)

	assert.Empty(t, p.PDFURL,
		"an HTML body on the distrusted host must never pass as a PDF, whatever the filename says")
}

func TestResolve_DistrustedHostAcceptsRealPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 fake body"))
	}))
	defer server.Close()

	r := newTestResolver(nil)
	serverURL, _ := url.Parse(server.URL)
	r.httpClient.Transport = rewriteHost(serverURL.Host)

	p := &domain.Paper{Title: "T", PDFURL: "http://www.researchgate.net/real/paper.pdf"}
	r.resolve(context.Background(), p)

	assert.Equal(t, "http://www.researchgate.net/real/paper.pdf", p.PDFURL)
}

func TestResolve_VerifiesCandidateBySignature(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pdf/2301.00001", func(w http.ResponseWriter, r *http.Request) {
		// Wrong content type; the signature must still win.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("%PDF-1.5 body"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newTestResolver(nil)
	serverURL, _ := url.Parse(server.URL)
	r.httpClient.Transport = rewriteHost(serverURL.Host)

	p := &domain.Paper{
		Title:        "T",
		URL:          "https://arxiv.org/abs/2301.00001",
		IsOpenAccess: true,
	}
	r.resolve(context.Background(), p)

	assert.Equal(t, "https://arxiv.org/pdf/2301.00001", p.PDFURL)
}

func TestResolve_ScrapesLandingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/abs/2301.00002", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<meta name="citation_pdf_url" content="/real/paper.pdf">
		</head><body></body></html>`))
	})
	mux.HandleFunc("/pdf/2301.00002", func(w http.ResponseWriter, r *http.Request) {
		// The path-substitution candidate is itself an HTML page here,
		// forcing the scrape path.
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/real/paper.pdf">Download PDF</a></body></html>`))
	})
	mux.HandleFunc("/real/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newTestResolver(nil)
	serverURL, _ := url.Parse(server.URL)
	r.httpClient.Transport = rewriteHost(serverURL.Host)

	p := &domain.Paper{
		Title:        "T",
		URL:          "https://arxiv.org/abs/2301.00002",
		IsOpenAccess: true,
	}
	r.resolve(context.Background(), p)

	require.NotEmpty(t, p.PDFURL)
	assert.Contains(t, p.PDFURL, "/real/paper.pdf")
}

func TestResolve_PaywalledHostNotProbed(t *testing.T) {
	var probes int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := newTestResolver(nil)
	serverURL, _ := url.Parse(server.URL)
	r.httpClient.Transport = rewriteHost(serverURL.Host)

	p := &domain.Paper{
		Title:        "T",
		URL:          "https://paywalled-journal.example/article/1",
		IsOpenAccess: false,
	}
	r.resolve(context.Background(), p)

	assert.Empty(t, p.PDFURL)
	assert.Zero(t, probes, "closed papers on unknown hosts generate no candidates")
}

type fakeOALookup struct {
	locations map[string]*unpaywall.Location
	calls     int
}

func (f *fakeOALookup) Enabled() bool { return true }

func (f *fakeOALookup) Lookup(_ context.Context, doi string) (*unpaywall.Location, error) {
	f.calls++
	return f.locations[domain.NormalizeDOI(doi)], nil
}

func TestResolve_FallbackByDOI(t *testing.T) {
	oa := &fakeOALookup{locations: map[string]*unpaywall.Location{
		"10.1/x": {PDFURL: "https://repo.example/x.pdf", IsOpenAccess: true},
	}}

	r := newTestResolver(oa)

	p := &domain.Paper{Title: "T", DOI: "10.1/x"}
	r.resolve(context.Background(), p)

	assert.Equal(t, "https://repo.example/x.pdf", p.PDFURL)
	assert.Equal(t, 1, oa.calls)
}

func TestResolveAll_ExhaustionKeepsEmptyPDF(t *testing.T) {
	r := newTestResolver(nil)

	papers := []*domain.Paper{
		{Title: "closed, no doi"},
		{Title: "has pdf", PDFURL: "https://ok.example/a.pdf"},
	}
	r.ResolveAll(context.Background(), papers)

	assert.Empty(t, papers[0].PDFURL)
	assert.Equal(t, "https://ok.example/a.pdf", papers[1].PDFURL)
}

// rewriteHost returns a RoundTripper that redirects every request to the
// given test-server host while preserving path and query.
func rewriteHost(host string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		clone := req.Clone(req.Context())
		clone.URL.Scheme = "http"
		clone.URL.Host = host
		clone.Host = host
		return http.DefaultTransport.RoundTrip(clone)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

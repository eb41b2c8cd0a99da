package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

const (
	// DefaultBaseURL is the default Crossref REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit. Crossref's polite pool
	// allows substantially more, but the API advertises per-response limits
	// and 429s freely.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// DefaultMaxRetries is how many times a 429 or 5xx is retried.
	// Crossref's etiquette is to back off and retry rather than fail.
	DefaultMaxRetries = 2

	// sourceName is the human-readable name for this source.
	sourceName = "Crossref"
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// Mailto is the contact email sent with every request. Providing one
	// routes requests to Crossref's polite pool, which has better latency
	// and rate limits.
	Mailto string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.Source interface for Crossref.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "discovery-engine/1.0"
	if cfg.Mailto != "" {
		userAgent = fmt.Sprintf("discovery-engine/1.0 (mailto:%s)", cfg.Mailto)
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:          cfg.Timeout,
		RateLimit:        cfg.RateLimit,
		BurstSize:        cfg.BurstSize,
		MaxRetries:       DefaultMaxRetries,
		RetryRateLimited: true,
		UserAgent:        userAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Crossref for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	works, err := c.fetchWorks(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(works))
	for i := range works {
		if paper := convertToPaper(&works[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourceCrossref,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetBatch fetches work records for a set of DOIs in a single request,
// using the filter=doi:... syntax. Missing DOIs are silently absent from
// the result map. Used by the metadata enricher.
func (c *Client) GetBatch(ctx context.Context, dois []string) (map[string]*domain.Paper, error) {
	if len(dois) == 0 {
		return map[string]*domain.Paper{}, nil
	}

	baseURL, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	filters := make([]string, 0, len(dois))
	for _, doi := range dois {
		if norm := domain.NormalizeDOI(doi); norm != "" {
			filters = append(filters, "doi:"+norm)
		}
	}
	if len(filters) == 0 {
		return map[string]*domain.Paper{}, nil
	}

	query := url.Values{}
	query.Set("filter", strings.Join(filters, ","))
	query.Set("rows", strconv.Itoa(len(filters)))
	if c.config.Mailto != "" {
		query.Set("mailto", c.config.Mailto)
	}
	baseURL.RawQuery = query.Encode()

	works, err := c.fetchWorks(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}

	result := make(map[string]*domain.Paper, len(works))
	for i := range works {
		if paper := convertToPaper(&works[i]); paper != nil && paper.DOI != "" {
			result[paper.DOI] = paper
		}
	}
	return result, nil
}

// fetchWorks executes a /works request and decodes the envelope.
func (c *Client) fetchWorks(ctx context.Context, searchURL string) ([]Work, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewRateLimitError(sourceName, papersources.RetryAfter(resp))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return searchResp.Message.Items, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the /works search URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	query := url.Values{}
	query.Set("query.bibliographic", params.Query)

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}
	query.Set("rows", strconv.Itoa(maxResults))
	query.Set("select", "DOI,title,abstract,author,issued,container-title,URL,link,is-referenced-by-count,type,license")

	var filters []string
	if params.YearFrom != 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d-01-01", params.YearFrom))
	}
	if params.YearTo != 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d-12-31", params.YearTo))
	}
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	if c.config.Mailto != "" {
		query.Set("mailto", c.config.Mailto)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// convertToPaper converts a Crossref work to a domain Paper.
// Returns nil for records without a title, which the caller skips.
func convertToPaper(work *Work) *domain.Paper {
	if work == nil || len(work.Title) == 0 || work.Title[0] == "" {
		return nil
	}

	authors := make([]string, 0, len(work.Author))
	for _, a := range work.Author {
		switch {
		case a.Given != "" && a.Family != "":
			authors = append(authors, a.Given+" "+a.Family)
		case a.Family != "":
			authors = append(authors, a.Family)
		case a.Name != "":
			authors = append(authors, a.Name)
		}
	}

	var journal string
	if len(work.ContainerTitle) > 0 {
		journal = work.ContainerTitle[0]
	}

	doi := domain.NormalizeDOI(work.DOI)

	landingURL := work.URL
	if landingURL == "" && doi != "" {
		landingURL = "https://doi.org/" + doi
	}

	pdfURL := pdfLink(work.Link)

	return &domain.Paper{
		Title:         work.Title[0],
		Authors:       authors,
		Abstract:      stripJATS(work.Abstract),
		Year:          work.Issued.Year(),
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourceCrossref,
		IsOpenAccess:  pdfURL != "",
		OpenAccessURL: pdfURL,
		PDFURL:        pdfURL,
		Journal:       journal,
		CitationCount: work.IsReferencedBy,
		RawMetadata: map[string]interface{}{
			"type": work.Type,
		},
	}
}

// pdfLink picks the best full-text PDF link from a work's link list.
// Publisher-advertised links are hints, not guarantees; the resolver
// still verifies them.
func pdfLink(links []Link) string {
	for _, l := range links {
		if l.ContentType == "application/pdf" {
			return l.URL
		}
	}
	for _, l := range links {
		if strings.HasSuffix(strings.ToLower(l.URL), ".pdf") {
			return l.URL
		}
	}
	return ""
}

var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

// stripJATS removes JATS XML markup from Crossref abstracts, which arrive
// as fragments like "<jats:p>text</jats:p>".
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	clean := jatsTagRe.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(clean), " ")
}

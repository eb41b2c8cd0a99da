package scopus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

const (
	// DefaultBaseURL is the default Scopus Search API base URL.
	DefaultBaseURL = "https://api.elsevier.com/content/search/scopus"

	// DefaultRateLimit is the default rate limit. Elsevier allows 9 rps
	// for the search API.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// sourceName is the human-readable name for this source.
	sourceName = "Scopus"
)

// Config holds configuration for the Scopus client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is the Elsevier API key. Required.
	APIKey string

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

// Client implements the papersources.Source interface for Scopus.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new Scopus client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "X-ELS-APIKey",
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

// Search queries Scopus for records matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

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

	papers := make([]*domain.Paper, 0, len(searchResp.SearchResults.Entries))
	for i := range searchResp.SearchResults.Entries {
		if paper := convertToPaper(&searchResp.SearchResults.Entries[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourceScopus,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceScopus
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled. An API key is
// mandatory for Scopus, so the source is disabled without one.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// buildSearchURL constructs the Scopus search URL using the
// TITLE-ABS-KEY fielded query syntax.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	scopusQuery := fmt.Sprintf("TITLE-ABS-KEY(%s)", params.Query)
	if params.YearFrom != 0 {
		scopusQuery += fmt.Sprintf(" AND PUBYEAR > %d", params.YearFrom-1)
	}
	if params.YearTo != 0 {
		scopusQuery += fmt.Sprintf(" AND PUBYEAR < %d", params.YearTo+1)
	}
	if params.OpenAccessOnly {
		scopusQuery += " AND OPENACCESS(1)"
	}

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("query", scopusQuery)
	query.Set("count", strconv.Itoa(maxResults))
	query.Set("sort", "-relevancy")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// convertToPaper converts a Scopus entry to a domain Paper.
// Returns nil for empty-result sentinels and untitled records.
func convertToPaper(entry *Entry) *domain.Paper {
	if entry == nil || entry.Error != "" || entry.Title == "" {
		return nil
	}

	// The search API exposes only the first author.
	var authors []string
	if entry.Creator != "" {
		authors = []string{entry.Creator}
	}

	var year int
	if len(entry.CoverDate) >= 4 {
		if y, err := strconv.Atoi(entry.CoverDate[:4]); err == nil {
			year = y
		}
	}

	citations, _ := strconv.Atoi(entry.CitedByCount)

	var landingURL string
	for _, l := range entry.Links {
		if l.Ref == "scopus" {
			landingURL = l.Href
			break
		}
	}
	doi := domain.NormalizeDOI(entry.DOI)
	if landingURL == "" && doi != "" {
		landingURL = "https://doi.org/" + doi
	}

	return &domain.Paper{
		Title:         entry.Title,
		Authors:       authors,
		Abstract:      entry.Description,
		Year:          year,
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourceScopus,
		IsOpenAccess:  entry.OpenAccess == "true",
		Journal:       entry.Publication,
		CitationCount: citations,
		RawMetadata: map[string]interface{}{
			"scopus_id": strings.TrimPrefix(entry.ScopusID, "SCOPUS_ID:"),
			"eid":       entry.EID,
		},
	}
}

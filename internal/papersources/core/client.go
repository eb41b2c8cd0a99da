package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

const (
	// DefaultBaseURL is the default CORE v3 API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit is the default rate limit. The registered free tier
	// allows 10 requests per minute.
	DefaultRateLimit = 0.15

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// sourceName is the human-readable name for this source.
	sourceName = "CORE"
)

// Config holds configuration for the CORE client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is the CORE API key, sent as a Bearer token. Required.
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

// Client implements the papersources.Source interface for CORE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new CORE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
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

// Search queries CORE for works matching the given parameters.
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
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

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

	papers := make([]*domain.Paper, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if paper := convertToPaper(&searchResp.Results[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourceCORE,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceCORE
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled. An API key is
// mandatory for CORE, so the source is disabled without one.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// buildSearchURL constructs the /search/works URL. Year bounds are
// expressed in CORE's fielded query syntax.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/search/works")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	q := params.Query
	if params.YearFrom != 0 {
		q += fmt.Sprintf(" AND yearPublished>=%d", params.YearFrom)
	}
	if params.YearTo != 0 {
		q += fmt.Sprintf(" AND yearPublished<=%d", params.YearTo)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("limit", strconv.Itoa(maxResults))

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// convertToPaper converts a CORE work to a domain Paper.
// Returns nil for records without a title, which the caller skips.
func convertToPaper(work *WorkResult) *domain.Paper {
	if work == nil || work.Title == "" {
		return nil
	}

	authors := make([]string, 0, len(work.Authors))
	for _, a := range work.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	pdfURL := work.DownloadURL
	if pdfURL == "" {
		for _, l := range work.Links {
			if l.Type == "download" {
				pdfURL = l.URL
				break
			}
		}
	}

	doi := domain.NormalizeDOI(work.DOI)

	landingURL := fmt.Sprintf("https://core.ac.uk/works/%d", work.ID)
	if doi != "" {
		landingURL = "https://doi.org/" + doi
	}

	return &domain.Paper{
		Title:         work.Title,
		Authors:       authors,
		Abstract:      work.Abstract,
		Year:          work.YearPublished,
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourceCORE,
		IsOpenAccess:  pdfURL != "",
		OpenAccessURL: pdfURL,
		PDFURL:        pdfURL,
		Journal:       work.Publisher,
		CitationCount: work.CitationCount,
		RawMetadata: map[string]interface{}{
			"core_id": work.ID,
		},
	}
}

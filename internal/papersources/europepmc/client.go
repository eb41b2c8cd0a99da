package europepmc

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
	// DefaultBaseURL is the default Europe PMC REST API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// sourceName is the human-readable name for this source.
	sourceName = "Europe PMC"
)

// Config holds configuration for the Europe PMC client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

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

// Client implements the papersources.Source interface for Europe PMC.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new Europe PMC client with the given configuration.
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

// Search queries Europe PMC for records matching the given parameters.
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

	papers := make([]*domain.Paper, 0, len(searchResp.ResultList.Results))
	for i := range searchResp.ResultList.Results {
		if paper := convertToPaper(&searchResp.ResultList.Results[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourceEuropePMC,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceEuropePMC
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the /search URL. Year bounds use the
// PUB_YEAR fielded range syntax.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/search")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	q := params.Query
	if params.YearFrom != 0 || params.YearTo != 0 {
		from := 1800
		if params.YearFrom != 0 {
			from = params.YearFrom
		}
		to := 3000
		if params.YearTo != 0 {
			to = params.YearTo
		}
		q += fmt.Sprintf(" AND PUB_YEAR:[%d TO %d]", from, to)
	}
	if params.OpenAccessOnly {
		q += " AND OPEN_ACCESS:Y"
	}

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("query", q)
	query.Set("format", "json")
	query.Set("pageSize", strconv.Itoa(maxResults))
	query.Set("resultType", "core")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// convertToPaper converts a Europe PMC result to a domain Paper.
// Returns nil for records without a title, which the caller skips.
func convertToPaper(result *Result) *domain.Paper {
	if result == nil {
		return nil
	}

	title := strings.TrimSuffix(strings.TrimSpace(result.Title), ".")
	if title == "" {
		return nil
	}

	year, _ := strconv.Atoi(result.PubYear)

	var pdfURL string
	for _, u := range result.FullTextURLs.URLs {
		if u.DocumentType == "pdf" && u.Availability == "Open access" {
			pdfURL = u.URL
			break
		}
	}

	doi := domain.NormalizeDOI(result.DOI)

	landingURL := "https://europepmc.org/article/" + result.Source + "/" + result.ID
	if doi != "" && result.ID == "" {
		landingURL = "https://doi.org/" + doi
	}

	return &domain.Paper{
		Title:         title,
		Authors:       splitAuthorString(result.AuthorString),
		Abstract:      result.AbstractText,
		Year:          year,
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourceEuropePMC,
		IsOpenAccess:  result.IsOpenAccess == "Y",
		OpenAccessURL: pdfURL,
		PDFURL:        pdfURL,
		Journal:       result.JournalTitle,
		CitationCount: result.CitedByCount,
		RawMetadata: map[string]interface{}{
			"epmc_id":     result.ID,
			"epmc_source": result.Source,
		},
	}
}

// splitAuthorString splits Europe PMC's comma-separated author string
// ("Doe J, Zhang W.") into individual names.
func splitAuthorString(s string) []string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

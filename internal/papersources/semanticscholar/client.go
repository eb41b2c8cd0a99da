package semanticscholar

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
	// DefaultBaseURL is the default Semantic Scholar API base URL.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit. The unauthenticated tier
	// is shared, so stay conservative.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// searchFields lists the fields requested from the API.
	searchFields = "title,abstract,year,venue,citationCount,isOpenAccess,openAccessPdf,externalIds,authors,publicationDate,journal"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config holds configuration for the Semantic Scholar client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is an optional API key for higher rate limits.
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

// Client implements the papersources.Source interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "x-api-key",
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

// Search queries Semantic Scholar for papers matching the given parameters.
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

	papers := make([]*domain.Paper, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		if paper := c.convertToPaper(&searchResp.Data[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourceSemanticScholar,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the paper search URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/paper/search")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("fields", searchFields)

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}
	query.Set("limit", strconv.Itoa(maxResults))

	if yearFilter := buildYearFilter(params.YearFrom, params.YearTo); yearFilter != "" {
		query.Set("year", yearFilter)
	}
	if params.OpenAccessOnly {
		query.Set("openAccessPdf", "")
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildYearFilter formats the year range in Semantic Scholar's syntax
// ("2019-2023", "2019-", "-2023").
func buildYearFilter(yearFrom, yearTo int) string {
	switch {
	case yearFrom != 0 && yearTo != 0:
		return fmt.Sprintf("%d-%d", yearFrom, yearTo)
	case yearFrom != 0:
		return fmt.Sprintf("%d-", yearFrom)
	case yearTo != 0:
		return fmt.Sprintf("-%d", yearTo)
	default:
		return ""
	}
}

// convertToPaper converts a Semantic Scholar paper to a domain Paper.
// Returns nil for records without a title, which the caller skips.
func (c *Client) convertToPaper(data *PaperData) *domain.Paper {
	if data == nil || data.Title == "" {
		return nil
	}

	authors := make([]string, 0, len(data.Authors))
	for _, a := range data.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	var doi string
	if raw, ok := data.ExternalIDs["DOI"].(string); ok {
		doi = domain.NormalizeDOI(raw)
	}

	var pdfURL string
	if data.OpenAccessPdf != nil {
		pdfURL = data.OpenAccessPdf.URL
	}

	journal := data.Venue
	if data.Journal != nil && data.Journal.Name != "" {
		journal = data.Journal.Name
	}

	landingURL := "https://www.semanticscholar.org/paper/" + data.PaperID
	if doi != "" {
		landingURL = "https://doi.org/" + doi
	}

	return &domain.Paper{
		Title:         data.Title,
		Authors:       authors,
		Abstract:      data.Abstract,
		Year:          data.Year,
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourceSemanticScholar,
		IsOpenAccess:  data.IsOpenAccess,
		OpenAccessURL: pdfURL,
		PDFURL:        pdfURL,
		Journal:       journal,
		CitationCount: data.CitationCount,
		RawMetadata: map[string]interface{}{
			"paper_id": data.PaperID,
		},
	}
}

package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
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
	// DefaultBaseURL is the default E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the default rate limit. NCBI allows 3 rps without
	// an API key and 10 rps with one.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// DefaultMaxRetries is how many times a 429 or 5xx is retried. NCBI's
	// guidance is to back off and retry rather than fail.
	DefaultMaxRetries = 2

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds configuration for the PubMed client.
type Config struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string

	// APIKey is an optional NCBI API key for higher rate limits.
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

// Client implements the papersources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Source interface.
var _ papersources.Source = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:          cfg.Timeout,
		RateLimit:        cfg.RateLimit,
		BurstSize:        cfg.BurstSize,
		MaxRetries:       DefaultMaxRetries,
		RetryRateLimited: true,
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

// Search queries PubMed for articles matching the given parameters.
// The search is two requests: esearch for matching PMIDs, then efetch for
// the full article records.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	pmids, err := c.searchIDs(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(pmids) == 0 {
		return &papersources.SearchResult{
			Papers:         []*domain.Paper{},
			Source:         domain.SourcePubMed,
			SearchDuration: time.Since(startTime),
		}, nil
	}

	papers, err := c.fetchArticles(ctx, pmids)
	if err != nil {
		return nil, err
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Source:         domain.SourcePubMed,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourcePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// searchIDs runs esearch and returns matching PMIDs.
func (c *Client) searchIDs(ctx context.Context, params papersources.SearchParams) ([]string, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("db", "pubmed")
	query.Set("term", buildTerm(params))
	query.Set("retmax", strconv.Itoa(maxResults))
	query.Set("retmode", "json")
	query.Set("sort", "relevance")
	if c.config.APIKey != "" {
		query.Set("api_key", c.config.APIKey)
	}
	baseURL.RawQuery = query.Encode()

	resp, err := c.get(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var searchResp ESearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding esearch response: %w", err)
	}

	return searchResp.ESearchResult.IDList, nil
}

// fetchArticles runs efetch for the given PMIDs and converts the records.
func (c *Client) fetchArticles(ctx context.Context, pmids []string) ([]*domain.Paper, error) {
	baseURL, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	query := url.Values{}
	query.Set("db", "pubmed")
	query.Set("id", strings.Join(pmids, ","))
	query.Set("retmode", "xml")
	if c.config.APIKey != "" {
		query.Set("api_key", c.config.APIKey)
	}
	baseURL.RawQuery = query.Encode()

	resp, err := c.get(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var articleSet ArticleSet
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&articleSet); err != nil {
		return nil, fmt.Errorf("decoding efetch response: %w", err)
	}

	papers := make([]*domain.Paper, 0, len(articleSet.Articles))
	for i := range articleSet.Articles {
		if paper := convertToPaper(&articleSet.Articles[i]); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// get executes a GET request and maps error statuses.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, domain.NewRateLimitError(sourceName, papersources.RetryAfter(resp))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	return resp, nil
}

// buildTerm constructs the esearch term. Free-text queries are scoped to
// title/abstract fields and combined with a publication-date range filter.
func buildTerm(params papersources.SearchParams) string {
	term := fmt.Sprintf("(%s[Title/Abstract])", params.Query)

	if params.YearFrom != 0 || params.YearTo != 0 {
		from := "1800"
		if params.YearFrom != 0 {
			from = strconv.Itoa(params.YearFrom)
		}
		to := "3000"
		if params.YearTo != 0 {
			to = strconv.Itoa(params.YearTo)
		}
		term += fmt.Sprintf(" AND (%s[Date - Publication] : %s[Date - Publication])", from, to)
	}

	if params.OpenAccessOnly {
		term += ` AND "pubmed pmc open access"[Filter]`
	}

	return term
}

var medlineYearRe = regexp.MustCompile(`\b(1[89]|20)\d{2}\b`)

// convertToPaper converts a PubMed article record to a domain Paper.
// Returns nil for records without a title, which the caller skips.
func convertToPaper(article *PubmedArticle) *domain.Paper {
	if article == nil {
		return nil
	}

	a := article.MedlineCitation.Article
	title := strings.TrimSpace(a.Title)
	title = strings.TrimSuffix(title, ".")
	if title == "" {
		return nil
	}

	authors := make([]string, 0, len(a.Authors.Authors))
	for _, au := range a.Authors.Authors {
		switch {
		case au.ForeName != "" && au.LastName != "":
			authors = append(authors, au.ForeName+" "+au.LastName)
		case au.LastName != "":
			authors = append(authors, au.LastName)
		case au.CollectiveName != "":
			authors = append(authors, au.CollectiveName)
		}
	}

	var doi, pmcID string
	for _, id := range article.PubmedData.ArticleIDs.IDs {
		switch id.IDType {
		case "doi":
			doi = domain.NormalizeDOI(id.Value)
		case "pmc":
			pmcID = strings.TrimSpace(id.Value)
		}
	}

	pmid := strings.TrimSpace(article.MedlineCitation.PMID)
	landingURL := "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"

	// A PMC ID means the full text is deposited in PubMed Central.
	var pdfURL string
	if pmcID != "" {
		pdfURL = "https://www.ncbi.nlm.nih.gov/pmc/articles/" + pmcID + "/pdf/"
	}

	return &domain.Paper{
		Title:         title,
		Authors:       authors,
		Abstract:      joinAbstract(a.Abstract),
		Year:          pubYear(a.Journal.JournalIssue.PubDate),
		DOI:           doi,
		URL:           landingURL,
		Source:        domain.SourcePubMed,
		IsOpenAccess:  pmcID != "",
		OpenAccessURL: pdfURL,
		PDFURL:        pdfURL,
		Journal:       a.Journal.Title,
		RawMetadata: map[string]interface{}{
			"pmid": pmid,
		},
	}
}

// joinAbstract flattens labeled abstract sections into one string.
func joinAbstract(abstract Abstract) string {
	parts := make([]string, 0, len(abstract.Sections))
	for _, s := range abstract.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// pubYear extracts the publication year, falling back to the first
// plausible year in a free-form MedlineDate.
func pubYear(date PubDate) int {
	if date.Year != "" {
		if y, err := strconv.Atoi(strings.TrimSpace(date.Year)); err == nil {
			return y
		}
	}
	if match := medlineYearRe.FindString(date.MedlineDate); match != "" {
		if y, err := strconv.Atoi(match); err == nil {
			return y
		}
	}
	return 0
}

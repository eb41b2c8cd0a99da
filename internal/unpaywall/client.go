// Package unpaywall provides a client for the Unpaywall open-access
// location API. Lookups are keyed by DOI and require a contact email per
// the service's usage policy. Both hits and misses are cached for the
// lifetime of the process, since the same DOI recurs across discovery
// calls and the underlying records change rarely.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

const (
	// DefaultBaseURL is the default Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// DefaultRateLimit is the default rate limit.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second
)

// Config holds configuration for the Unpaywall client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// Email is the contact identity required by Unpaywall. Lookups are
	// disabled without one.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int
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
}

// Location is a resolved open-access location for a DOI. A zero PDFURL
// with found=true means the work is OA but only as HTML.
type Location struct {
	PDFURL       string
	LandingURL   string
	IsOpenAccess bool
}

// response mirrors the fields we read from the Unpaywall record.
type response struct {
	IsOA           bool        `json:"is_oa"`
	BestOALocation *oaLocation `json:"best_oa_location"`
}

type oaLocation struct {
	URLForPDF      string `json:"url_for_pdf"`
	URLForLanding  string `json:"url_for_landing_page"`
}

// Client looks up open-access locations by DOI with a process-lifetime
// cache of both positive and negative outcomes.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient

	mu    sync.Mutex
	cache map[string]*Location // normalized DOI -> location, nil value = known miss
}

// New creates a new Unpaywall client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
		cache: make(map[string]*Location),
	}
}

// Enabled reports whether lookups can run (a contact email is configured).
func (c *Client) Enabled() bool {
	return c.config.Email != ""
}

// Lookup returns the open-access location for a DOI, or nil when none is
// known. Results, including misses, are served from cache on repeat calls.
func (c *Client) Lookup(ctx context.Context, doi string) (*Location, error) {
	if !c.Enabled() {
		return nil, nil
	}

	norm := domain.NormalizeDOI(doi)
	if norm == "" {
		return nil, nil
	}

	c.mu.Lock()
	if loc, ok := c.cache[norm]; ok {
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	loc, err := c.fetch(ctx, norm)
	if err != nil {
		// Errors are not cached: a transient failure should not poison
		// the DOI for the rest of the process lifetime.
		return nil, err
	}

	c.mu.Lock()
	c.cache[norm] = loc
	c.mu.Unlock()

	return loc, nil
}

// fetch performs the actual API lookup. A 404 is a definitive miss.
func (c *Client) fetch(ctx context.Context, doi string) (*Location, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.config.BaseURL, url.PathEscape(doi),
		url.Values{"email": {c.config.Email}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewRateLimitError("Unpaywall", papersources.RetryAfter(resp))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("Unpaywall", resp.StatusCode, string(body), nil)
	}

	var record response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if !record.IsOA || record.BestOALocation == nil {
		return nil, nil
	}

	return &Location{
		PDFURL:       record.BestOALocation.URLForPDF,
		LandingURL:   record.BestOALocation.URLForLanding,
		IsOpenAccess: true,
	}, nil
}

// CacheSize returns the number of cached DOI outcomes. Exposed for
// metrics and tests.
func (c *Client) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

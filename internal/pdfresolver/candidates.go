package pdfresolver

import (
	"fmt"
	"net/url"
	"strings"
)

// openHostAllowlist lists hosts known to serve open content. Papers that
// are not open-access-flagged only get candidates generated when their
// landing URL is on this list, so paywalled hosts are not probed for
// nothing.
var openHostAllowlist = map[string]bool{
	"arxiv.org":         true,
	"www.biorxiv.org":   true,
	"www.medrxiv.org":   true,
	"europepmc.org":     true,
	"www.ncbi.nlm.nih.gov": true,
	"pmc.ncbi.nlm.nih.gov": true,
	"core.ac.uk":        true,
	"zenodo.org":        true,
	"hal.science":       true,
}

// distrustedHosts have historically served HTML at PDF-looking URLs;
// their advertised PDF links are never trusted without verification.
var distrustedHosts = map[string]bool{
	"researchgate.net":     true,
	"www.researchgate.net": true,
}

// isDistrustedHost reports whether rawURL's host is on the distrusted list.
func isDistrustedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return distrustedHosts[strings.ToLower(u.Host)]
}

// isOpenHost reports whether rawURL's host is on the open allow-list.
func isOpenHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if openHostAllowlist[host] {
		return true
	}
	return strings.HasSuffix(host, ".arxiv.org")
}

// generateCandidates builds plausible direct-PDF URLs from a paper's
// landing URL and DOI using host-aware heuristics. The order matters:
// earlier candidates are cheaper or more likely.
func generateCandidates(landingURL, doi string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}

	if landingURL != "" {
		u, err := url.Parse(landingURL)
		if err == nil {
			host := strings.ToLower(u.Host)
			switch {
			case host == "arxiv.org" || strings.HasSuffix(host, ".arxiv.org"):
				// Abstract page -> PDF path substitution.
				if strings.Contains(u.Path, "/abs/") {
					add(strings.Replace(landingURL, "/abs/", "/pdf/", 1))
				}

			case strings.Contains(host, "ieeexplore.ieee.org"):
				// Stamp endpoint keyed by the document number.
				if id := lastPathSegment(u.Path); id != "" {
					add(fmt.Sprintf("https://ieeexplore.ieee.org/stamp/stamp.jsp?tp=&arnumber=%s", id))
				}

			case strings.Contains(host, "sciencedirect.com"):
				// Delivery endpoint keyed by the PII in the path.
				if strings.Contains(u.Path, "/pii/") {
					add(strings.TrimRight(landingURL, "/") + "/pdfft?isDTMRedir=true&download=true")
				}

			case strings.Contains(host, "dl.acm.org"):
				if strings.Contains(u.Path, "/doi/") && !strings.Contains(u.Path, "/doi/pdf/") {
					add(strings.Replace(landingURL, "/doi/", "/doi/pdf/", 1))
				}

			case strings.HasSuffix(strings.ToLower(u.Path), ".pdf"):
				add(landingURL)
			}
		}
	}

	// DOI landing pages frequently redirect somewhere scrapeable.
	if doi != "" {
		add("https://doi.org/" + doi)
	}

	return candidates
}

// lastPathSegment returns the final non-empty path segment.
func lastPathSegment(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

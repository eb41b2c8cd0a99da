package pdfresolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxScrapeDepth bounds recursive extraction from HTML landing pages.
const maxScrapeDepth = 2

// sniffLimit is how many bytes are fetched to inspect a response.
const sniffLimit = 64 << 10

// pdfSignature is the magic prefix of every PDF file.
const pdfSignature = "%PDF-"

// verdict is the outcome of verifying one candidate URL.
type verdict struct {
	// isPDF means the URL itself serves a PDF.
	isPDF bool
	// links are further candidates extracted from an HTML body.
	links []string
}

// verify checks whether candidate serves a PDF. A metadata-only probe
// runs first; when inconclusive, a partial-content request inspects
// headers and the leading bytes. HTML bodies yield extracted links for
// the caller to recurse into.
func (r *Resolver) verify(ctx context.Context, candidate string) (verdict, error) {
	if v, ok := r.probeHead(ctx, candidate); ok {
		return v, nil
	}
	return r.probeGet(ctx, candidate)
}

// probeHead issues a HEAD request. The bool result is false when the
// probe was inconclusive (method not allowed, missing content type, or
// an HTML content type that needs a body to scrape).
func (r *Resolver) probeHead(ctx context.Context, candidate string) (verdict, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return verdict{}, false
	}
	req.Header.Set("User-Agent", r.config.UserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return verdict{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return verdict{}, false
	}

	if headersSayPDF(resp.Header) {
		return verdict{isPDF: true}, true
	}

	// An HTML content type is a definitive "not a PDF itself", but the
	// body may still link to one, so fall through to GET.
	return verdict{}, false
}

// probeGet issues a partial-content GET and inspects headers, the file
// signature, and, for HTML, extracts further candidates.
func (r *Resolver) probeGet(ctx context.Context, candidate string) (verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return verdict{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffLimit-1))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return verdict{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return verdict{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, sniffLimit))
	if err != nil {
		return verdict{}, fmt.Errorf("reading body: %w", err)
	}

	// The signature beats any header claim, in both directions: some
	// hosts serve PDFs as octet-stream and some serve HTML error pages
	// with a PDF content type.
	if strings.HasPrefix(string(body), pdfSignature) {
		return verdict{isPDF: true}, nil
	}

	if headersSayPDF(resp.Header) && !looksLikeHTML(body) {
		return verdict{isPDF: true}, nil
	}

	if looksLikeHTML(body) {
		finalURL := candidate
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		return verdict{links: extractPDFLinks(body, finalURL)}, nil
	}

	return verdict{}, nil
}

// headersSayPDF checks content-type and content-disposition for a PDF claim.
func headersSayPDF(h http.Header) bool {
	ct := strings.ToLower(h.Get("Content-Type"))
	if strings.Contains(ct, "application/pdf") {
		return true
	}
	cd := strings.ToLower(h.Get("Content-Disposition"))
	return strings.Contains(cd, ".pdf")
}

// looksLikeHTML sniffs the leading bytes for HTML markers.
func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	head = strings.TrimSpace(head)
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<head") ||
		strings.Contains(head, "<body")
}

// pdfLinkCues are substrings that mark an anchor as a likely PDF link.
var pdfLinkCues = []string{"pdf", "download", "full-text", "fulltext"}

// extractPDFLinks pulls candidate PDF URLs out of an HTML document:
// the citation_pdf_url meta tag first, then anchors whose href or text
// carries a PDF/download/full-text cue.
func extractPDFLinks(body []byte, baseRawURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseRawURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	add := func(href string) {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}

	// Highwire-style meta tag used by most publisher platforms.
	doc.Find(`meta[name="citation_pdf_url"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			add(content)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lowerHref := strings.ToLower(href)
		lowerText := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, cue := range pdfLinkCues {
			if strings.Contains(lowerHref, cue) || strings.Contains(lowerText, cue) {
				add(href)
				break
			}
		}
	})

	return links
}

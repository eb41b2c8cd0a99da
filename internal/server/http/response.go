package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/litscout/discovery-engine/internal/domain"
)

// Response types for JSON serialization.

type discoverResponse struct {
	Papers      []paperResponse       `json:"papers"`
	SourceStats []sourceStatsResponse `json:"source_stats"`
}

type paperResponse struct {
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	Year           int      `json:"year,omitempty"`
	DOI            string   `json:"doi,omitempty"`
	URL            string   `json:"url,omitempty"`
	Source         string   `json:"source"`
	IsOpenAccess   bool     `json:"is_open_access"`
	PDFURL         string   `json:"pdf_url,omitempty"`
	Journal        string   `json:"journal,omitempty"`
	CitationCount  int      `json:"citation_count"`
	RelevanceScore float64  `json:"relevance_score"`
}

type sourceStatsResponse struct {
	Source       string `json:"source"`
	Count        int    `json:"count"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// Converter functions

func discoveryResultToResponse(result *domain.DiscoveryResult) discoverResponse {
	papers := make([]paperResponse, 0, len(result.Papers))
	for _, p := range result.Papers {
		papers = append(papers, domainPaperToResponse(p))
	}

	stats := make([]sourceStatsResponse, 0, len(result.SourceStats))
	for _, s := range result.SourceStats {
		stats = append(stats, sourceStatsResponse{
			Source:       string(s.Source),
			Count:        s.Count,
			Status:       string(s.Status),
			ErrorMessage: s.ErrorMessage,
			ElapsedMs:    s.Elapsed.Milliseconds(),
		})
	}

	return discoverResponse{Papers: papers, SourceStats: stats}
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	return paperResponse{
		Title:          p.Title,
		Authors:        p.Authors,
		Abstract:       p.Abstract,
		Year:           p.Year,
		DOI:            p.DOI,
		URL:            p.URL,
		Source:         string(p.Source),
		IsOpenAccess:   p.IsOpenAccess,
		PDFURL:         p.PDFURL,
		Journal:        p.Journal,
		CitationCount:  p.CitationCount,
		RelevanceScore: p.RelevanceScore,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

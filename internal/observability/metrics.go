package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the discovery engine.
// Metrics are organized by subsystem: discoveries, searches, papers, PDF
// resolution, enrichment, and LLM operations. All counters and histograms
// are registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// DiscoveriesStarted counts the total number of discovery requests received.
	DiscoveriesStarted prometheus.Counter

	// DiscoveriesCompleted counts discoveries that returned at least one paper.
	DiscoveriesCompleted prometheus.Counter

	// DiscoveriesEmpty counts discoveries that returned zero papers.
	DiscoveriesEmpty prometheus.Counter

	// DiscoveryDuration observes the end-to-end duration of discoveries in seconds.
	DiscoveryDuration prometheus.Histogram

	// SearchesStarted counts provider searches initiated, labeled by source.
	SearchesStarted *prometheus.CounterVec

	// SearchOutcomes counts finished provider searches by source and
	// terminal status (success, timeout, rate_limited, error).
	SearchOutcomes *prometheus.CounterVec

	// SearchDuration observes provider search duration in seconds, labeled by source.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersMerged counts papers accepted into the merge map across all sources.
	PapersMerged prometheus.Counter

	// PapersDeduplicated counts papers collapsed by cross-source deduplication.
	PapersDeduplicated prometheus.Counter

	// PapersFiltered counts papers removed by hard filters and relevance gates.
	PapersFiltered prometheus.Counter

	// PapersReturned observes how many papers each discovery ultimately returned.
	PapersReturned prometheus.Histogram

	// SupplementaryPhrasings counts alternative phrasings searched per discovery.
	SupplementaryPhrasings prometheus.Counter

	// EnrichmentsCompleted counts enrichment passes that finished, labeled by enricher.
	EnrichmentsCompleted *prometheus.CounterVec

	// EnrichmentsFailed counts enrichment passes that failed, labeled by enricher.
	EnrichmentsFailed *prometheus.CounterVec

	// PDFResolutions counts per-paper PDF resolution outcomes
	// (trusted, resolved, fallback, exhausted).
	PDFResolutions *prometheus.CounterVec

	// LLMRequestsTotal counts LLM requests by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM requests by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM request duration in seconds by operation.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Discoveries
		DiscoveriesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_started_total",
			Help:      "Total number of discovery requests received",
		}),
		DiscoveriesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_completed_total",
			Help:      "Total number of discoveries that returned papers",
		}),
		DiscoveriesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_empty_total",
			Help:      "Total number of discoveries that returned zero papers",
		}),
		DiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "End-to-end duration of discoveries in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of provider searches started by source",
		}, []string{"source"}),
		SearchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_outcomes_total",
			Help:      "Total number of finished provider searches by source and status",
		}, []string{"source", "status"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of provider searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}, []string{"source"}),

		// Papers
		PapersMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_merged_total",
			Help:      "Total number of papers accepted into the merge map",
		}),
		PapersDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total number of papers collapsed by deduplication",
		}),
		PapersFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_filtered_total",
			Help:      "Total number of papers removed by filters and relevance gates",
		}),
		PapersReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_returned",
			Help:      "Number of papers returned per discovery",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		SupplementaryPhrasings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supplementary_phrasings_total",
			Help:      "Total number of alternative phrasings searched",
		}),

		// Enrichment
		EnrichmentsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_completed_total",
			Help:      "Total number of enrichment passes that finished by enricher",
		}, []string{"enricher"}),
		EnrichmentsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_failed_total",
			Help:      "Total number of enrichment passes that failed by enricher",
		}, []string{"enricher"}),

		// PDF resolution
		PDFResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_resolutions_total",
			Help:      "Total number of per-paper PDF resolution outcomes",
		}, []string{"outcome"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation and model",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation, model, and error type",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds by operation",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
}

// RecordDiscoveryStarted increments the discoveries-started counter.
func (m *Metrics) RecordDiscoveryStarted() {
	m.DiscoveriesStarted.Inc()
}

// RecordDiscoveryCompleted records a finished discovery with its paper
// count and duration. Zero-paper discoveries count as empty.
func (m *Metrics) RecordDiscoveryCompleted(paperCount int, durationSeconds float64) {
	if paperCount > 0 {
		m.DiscoveriesCompleted.Inc()
	} else {
		m.DiscoveriesEmpty.Inc()
	}
	m.DiscoveryDuration.Observe(durationSeconds)
	m.PapersReturned.Observe(float64(paperCount))
}

// RecordSearchStarted increments the per-source search counter.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchOutcome records a finished provider search.
func (m *Metrics) RecordSearchOutcome(source, status string, paperCount int, durationSeconds float64) {
	m.SearchOutcomes.WithLabelValues(source, status).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordPapersMerged adds to the merged-papers counter.
func (m *Metrics) RecordPapersMerged(count int) {
	m.PapersMerged.Add(float64(count))
}

// RecordPapersDeduplicated adds to the deduplicated-papers counter.
func (m *Metrics) RecordPapersDeduplicated(count int) {
	m.PapersDeduplicated.Add(float64(count))
}

// RecordPapersFiltered adds to the filtered-papers counter.
func (m *Metrics) RecordPapersFiltered(count int) {
	m.PapersFiltered.Add(float64(count))
}

// RecordSupplementaryPhrasings adds to the phrasings counter.
func (m *Metrics) RecordSupplementaryPhrasings(count int) {
	m.SupplementaryPhrasings.Add(float64(count))
}

// RecordEnrichment records an enrichment pass outcome.
func (m *Metrics) RecordEnrichment(enricher string, err error) {
	if err != nil {
		m.EnrichmentsFailed.WithLabelValues(enricher).Inc()
		return
	}
	m.EnrichmentsCompleted.WithLabelValues(enricher).Inc()
}

// RecordPDFResolution records a per-paper PDF resolution outcome.
func (m *Metrics) RecordPDFResolution(outcome string) {
	m.PDFResolutions.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records a completed LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

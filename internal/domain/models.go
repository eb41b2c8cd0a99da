package domain

import "time"

// SourceStatus describes the outcome of one provider search task.
type SourceStatus string

// Source task statuses.
const (
	// StatusPending means the task has been dispatched but not finished.
	StatusPending SourceStatus = "pending"
	// StatusSuccess means the provider returned a parseable response.
	StatusSuccess SourceStatus = "success"
	// StatusTimeout means the task exceeded its per-call budget.
	StatusTimeout SourceStatus = "timeout"
	// StatusRateLimited means the provider reported throttling.
	StatusRateLimited SourceStatus = "rate_limited"
	// StatusError means any other failure (network, 5xx, malformed body).
	StatusError SourceStatus = "error"
)

// SourceStats records one provider's contribution to a discovery call.
// Immutable once the provider's task completes.
type SourceStats struct {
	// Source is the provider this entry describes.
	Source SourceType `json:"source"`

	// Count is the number of papers the provider contributed.
	Count int `json:"count"`

	// Status is the terminal outcome of the provider task.
	Status SourceStatus `json:"status"`

	// ErrorMessage carries detail for non-success statuses.
	ErrorMessage string `json:"error_message,omitempty"`

	// Elapsed is the wall-clock duration of the provider task.
	Elapsed time.Duration `json:"elapsed_ms"`
}

// DiscoveryResult is the value returned by a discovery call: the ranked,
// capped paper list plus per-provider statistics. Not mutated after return.
type DiscoveryResult struct {
	Papers      []*Paper      `json:"papers"`
	SourceStats []SourceStats `json:"source_stats"`
}

// EmptyResult returns a DiscoveryResult with no papers and no stats.
// Used by the facade when the whole pipeline must degrade rather than fail.
func EmptyResult() *DiscoveryResult {
	return &DiscoveryResult{
		Papers:      []*Paper{},
		SourceStats: []SourceStats{},
	}
}

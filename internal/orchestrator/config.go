package orchestrator

import (
	"time"

	"github.com/litscout/discovery-engine/internal/domain"
)

// Config holds the orchestrator's tunables. The early-exit thresholds are
// empirically tuned, so they live in configuration rather than code.
type Config struct {
	// MaxConcurrentSearches bounds simultaneous in-flight provider calls.
	MaxConcurrentSearches int

	// SearchTimeout is the per-provider call budget.
	SearchTimeout time.Duration

	// FastSearchTimeout replaces SearchTimeout in fast mode.
	FastSearchTimeout time.Duration

	// EarlyExitMinSources is how many distinct sources must have
	// contributed before early exit may fire (fast mode only).
	EarlyExitMinSources int

	// EarlyExitFloor is the minimum wall-clock time before early exit may
	// fire, so slightly-slower high-value providers are not cut off.
	EarlyExitFloor time.Duration

	// RelevanceFloor is the minimum score a paper must reach to survive
	// the floor stage.
	RelevanceFloor float64

	// FloorBypassCount is how many papers must remain post-floor; with
	// fewer, the floor is bypassed and the top pre-floor papers returned.
	FloorBypassCount int

	// ConceptGateThreshold is the core-term presence fraction below which
	// the concept gate penalizes a paper's score.
	ConceptGateThreshold float64

	// ConceptGateMinTerms is how many core terms must have been extracted
	// for the gate to be active at all.
	ConceptGateMinTerms int

	// DiversityFraction caps each source's share of the final list at
	// max(2, ceil(DiversityFraction * maxResults)).
	DiversityFraction float64

	// FastSources is the subset used for the supplementary phrasing
	// fan-out. Providers here must be cheap and reliably quick.
	FastSources []domain.SourceType

	// SupplementaryWait is how long after draining the orchestrator waits
	// for query-understanding phrasings before skipping the supplementary
	// phase.
	SupplementaryWait time.Duration
}

// Defaults for the orchestrator.
const (
	DefaultMaxConcurrentSearches = 4
	DefaultSearchTimeout         = 20 * time.Second
	DefaultFastSearchTimeout     = 8 * time.Second
	DefaultEarlyExitMinSources   = 3
	DefaultEarlyExitFloor        = 3 * time.Second
	DefaultRelevanceFloor        = 0.25
	DefaultFloorBypassCount      = 5
	DefaultConceptGateThreshold  = 0.3
	DefaultConceptGateMinTerms   = 3
	DefaultDiversityFraction     = 0.4
	DefaultSupplementaryWait     = 2 * time.Second
)

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MaxConcurrentSearches <= 0 {
		c.MaxConcurrentSearches = DefaultMaxConcurrentSearches
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.FastSearchTimeout <= 0 {
		c.FastSearchTimeout = DefaultFastSearchTimeout
	}
	if c.EarlyExitMinSources <= 0 {
		c.EarlyExitMinSources = DefaultEarlyExitMinSources
	}
	if c.EarlyExitFloor <= 0 {
		c.EarlyExitFloor = DefaultEarlyExitFloor
	}
	if c.RelevanceFloor <= 0 {
		c.RelevanceFloor = DefaultRelevanceFloor
	}
	if c.FloorBypassCount <= 0 {
		c.FloorBypassCount = DefaultFloorBypassCount
	}
	if c.ConceptGateThreshold <= 0 {
		c.ConceptGateThreshold = DefaultConceptGateThreshold
	}
	if c.ConceptGateMinTerms <= 0 {
		c.ConceptGateMinTerms = DefaultConceptGateMinTerms
	}
	if c.DiversityFraction <= 0 {
		c.DiversityFraction = DefaultDiversityFraction
	}
	if len(c.FastSources) == 0 {
		c.FastSources = []domain.SourceType{
			domain.SourceArxiv,
			domain.SourceOpenAlex,
			domain.SourceCrossref,
			domain.SourceEuropePMC,
		}
	}
	if c.SupplementaryWait <= 0 {
		c.SupplementaryWait = DefaultSupplementaryWait
	}
}

// Package observability provides logging, metrics, and request-context
// support for the discovery engine.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for discoveries, searches, enrichment, and PDF resolution
//   - Context helpers for propagating request identity
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("discovery started")
//
// Add discovery context to a logger:
//
//	logger = observability.WithDiscoveryContext(logger, requestID, query)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("discovery_engine")
//
// Record metrics:
//
//	metrics.RecordDiscoveryStarted()
//	metrics.RecordSearchOutcome("openalex", "success", 42, 1.2)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: Discovery request identifier
//   - query: User's research query
//   - source: Paper source (arxiv, openalex, etc.)
//   - title: Paper title
//   - doi: Paper DOI
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability

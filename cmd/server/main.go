// Package main provides the entry point for the discovery engine HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/litscout/discovery-engine/internal/config"
	"github.com/litscout/discovery-engine/internal/discovery"
	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/enrich"
	"github.com/litscout/discovery-engine/internal/llm"
	"github.com/litscout/discovery-engine/internal/observability"
	"github.com/litscout/discovery-engine/internal/orchestrator"
	"github.com/litscout/discovery-engine/internal/papersources"
	"github.com/litscout/discovery-engine/internal/papersources/arxiv"
	"github.com/litscout/discovery-engine/internal/papersources/core"
	"github.com/litscout/discovery-engine/internal/papersources/crossref"
	"github.com/litscout/discovery-engine/internal/papersources/europepmc"
	"github.com/litscout/discovery-engine/internal/papersources/openalex"
	"github.com/litscout/discovery-engine/internal/papersources/pubmed"
	"github.com/litscout/discovery-engine/internal/papersources/scopus"
	"github.com/litscout/discovery-engine/internal/papersources/semanticscholar"
	"github.com/litscout/discovery-engine/internal/pdfresolver"
	"github.com/litscout/discovery-engine/internal/rank"
	httpserver "github.com/litscout/discovery-engine/internal/server/http"
	"github.com/litscout/discovery-engine/internal/unpaywall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("discovery-engine server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Register provider adapters.
	registry := buildRegistry(cfg)
	enabled := registry.EnabledSources()
	names := make([]string, 0, len(enabled))
	for _, src := range enabled {
		names = append(names, src.Name())
	}
	logger.Info().Strs("sources", names).Msg("paper sources registered")

	// The OpenAI-compatible client is shared by the LLM/embedding rankers
	// and query understanding; absent an API key, neither is configured.
	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmCfg := llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Timeout:        cfg.LLM.Timeout,
			MaxRetries:     cfg.LLM.MaxRetries,
		}
		if metrics != nil {
			llmCfg.Recorder = metrics
		}
		llmClient = llm.New(llmCfg)
	}

	ranker, err := buildRanker(cfg.Ranker.Strategy, llmClient)
	if err != nil {
		return err
	}
	logger.Info().Str("ranker", ranker.Name()).Msg("ranker configured")

	orch := orchestrator.New(registry, ranker, orchestratorConfig(cfg), metrics, logger)

	// Unpaywall backs both the enricher and the resolver fallback; it is
	// active only when a contact email identifies the operator.
	oaLookup := unpaywall.New(unpaywall.Config{
		BaseURL: cfg.Unpaywall.BaseURL,
		Email:   cfg.Contact.Email,
		Timeout: cfg.Unpaywall.Timeout,
	})

	enrichers := []enrich.Enricher{
		enrich.NewCrossrefEnricher(crossref.New(crossrefConfig(cfg))),
		enrich.NewUnpaywallEnricher(oaLookup),
	}

	var pdfRes discovery.PDFResolver
	if cfg.Resolver.Enabled {
		pdfRes = pdfresolver.New(pdfresolver.Config{
			MaxConcurrentProbes: cfg.Resolver.MaxConcurrentProbes,
			ProbeTimeout:        cfg.Resolver.ProbeTimeout,
			UserAgent:           cfg.Contact.UserAgent,
		}, oaLookup, logger)
	}

	var understander discovery.QueryUnderstander
	if cfg.LLM.UnderstandQueries && llmClient != nil {
		understander = discovery.NewLLMUnderstander(llmClient)
	}

	engine := discovery.New(orch, enrichers, pdfRes, understander, metrics, logger)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	}
	httpSrv := httpserver.NewServer(httpCfg, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().Str("http_address", httpCfg.Address).Msg("discovery-engine is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("discovery-engine shutdown complete")
	return nil
}

// buildRegistry constructs every provider adapter from configuration and
// registers it. Adapters disabled by config or missing required API keys
// report themselves as disabled and are skipped at fan-out time.
func buildRegistry(cfg *config.Config) *papersources.Registry {
	registry := papersources.NewRegistry()

	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:    cfg.PaperSources.ArXiv.BaseURL,
		Timeout:    cfg.PaperSources.ArXiv.Timeout,
		RateLimit:  cfg.PaperSources.ArXiv.RateLimit,
		MaxResults: cfg.PaperSources.ArXiv.MaxResults,
		Enabled:    cfg.PaperSources.ArXiv.Enabled,
	}))

	registry.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:    cfg.PaperSources.SemanticScholar.BaseURL,
		APIKey:     cfg.PaperSources.SemanticScholar.APIKey,
		Timeout:    cfg.PaperSources.SemanticScholar.Timeout,
		RateLimit:  cfg.PaperSources.SemanticScholar.RateLimit,
		MaxResults: cfg.PaperSources.SemanticScholar.MaxResults,
		Enabled:    cfg.PaperSources.SemanticScholar.Enabled,
	}))

	registry.Register(crossref.New(crossrefConfig(cfg)))

	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.PaperSources.OpenAlex.BaseURL,
		Mailto:     cfg.Contact.Email,
		Timeout:    cfg.PaperSources.OpenAlex.Timeout,
		RateLimit:  cfg.PaperSources.OpenAlex.RateLimit,
		MaxResults: cfg.PaperSources.OpenAlex.MaxResults,
		Enabled:    cfg.PaperSources.OpenAlex.Enabled,
	}))

	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    cfg.PaperSources.PubMed.BaseURL,
		APIKey:     cfg.PaperSources.PubMed.APIKey,
		Timeout:    cfg.PaperSources.PubMed.Timeout,
		RateLimit:  cfg.PaperSources.PubMed.RateLimit,
		MaxResults: cfg.PaperSources.PubMed.MaxResults,
		Enabled:    cfg.PaperSources.PubMed.Enabled,
	}))

	registry.Register(core.New(core.Config{
		BaseURL:    cfg.PaperSources.Core.BaseURL,
		APIKey:     cfg.PaperSources.Core.APIKey,
		Timeout:    cfg.PaperSources.Core.Timeout,
		RateLimit:  cfg.PaperSources.Core.RateLimit,
		MaxResults: cfg.PaperSources.Core.MaxResults,
		Enabled:    cfg.PaperSources.Core.Enabled,
	}))

	registry.Register(scopus.New(scopus.Config{
		BaseURL:    cfg.PaperSources.Scopus.BaseURL,
		APIKey:     cfg.PaperSources.Scopus.APIKey,
		Timeout:    cfg.PaperSources.Scopus.Timeout,
		RateLimit:  cfg.PaperSources.Scopus.RateLimit,
		MaxResults: cfg.PaperSources.Scopus.MaxResults,
		Enabled:    cfg.PaperSources.Scopus.Enabled,
	}))

	registry.Register(europepmc.New(europepmc.Config{
		BaseURL:    cfg.PaperSources.EuropePMC.BaseURL,
		Timeout:    cfg.PaperSources.EuropePMC.Timeout,
		RateLimit:  cfg.PaperSources.EuropePMC.RateLimit,
		MaxResults: cfg.PaperSources.EuropePMC.MaxResults,
		Enabled:    cfg.PaperSources.EuropePMC.Enabled,
	}))

	return registry
}

// crossrefConfig is shared by the search adapter and the metadata enricher.
func crossrefConfig(cfg *config.Config) crossref.Config {
	return crossref.Config{
		BaseURL:    cfg.PaperSources.Crossref.BaseURL,
		Mailto:     cfg.Contact.Email,
		Timeout:    cfg.PaperSources.Crossref.Timeout,
		RateLimit:  cfg.PaperSources.Crossref.RateLimit,
		MaxResults: cfg.PaperSources.Crossref.MaxResults,
		Enabled:    cfg.PaperSources.Crossref.Enabled,
	}
}

// buildRanker selects the ranking strategy from configuration.
func buildRanker(strategy string, client *llm.Client) (rank.Ranker, error) {
	switch strategy {
	case config.RankerLexical:
		return rank.NewLexicalRanker(), nil
	case config.RankerHeuristic:
		return rank.NewHeuristicRanker(), nil
	case config.RankerLLM:
		if client == nil {
			return nil, fmt.Errorf("ranker strategy %q requires an LLM API key", strategy)
		}
		return rank.NewLLMRanker(client), nil
	case config.RankerEmbedding:
		if client == nil {
			return nil, fmt.Errorf("ranker strategy %q requires an LLM API key", strategy)
		}
		return rank.NewEmbeddingRanker(client), nil
	default:
		return nil, fmt.Errorf("unknown ranker strategy: %s", strategy)
	}
}

// orchestratorConfig maps configuration onto orchestrator tunables.
func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	fastSources := make([]domain.SourceType, 0, len(cfg.Orchestrator.FastSources))
	for _, tag := range cfg.Orchestrator.FastSources {
		st, err := domain.ParseSourceType(tag)
		if err != nil {
			continue
		}
		fastSources = append(fastSources, st)
	}

	return orchestrator.Config{
		MaxConcurrentSearches: cfg.Orchestrator.MaxConcurrentSearches,
		SearchTimeout:         cfg.Orchestrator.SearchTimeout,
		FastSearchTimeout:     cfg.Orchestrator.FastSearchTimeout,
		EarlyExitMinSources:   cfg.Orchestrator.EarlyExitMinSources,
		EarlyExitFloor:        cfg.Orchestrator.EarlyExitFloor,
		RelevanceFloor:        cfg.Orchestrator.RelevanceFloor,
		FloorBypassCount:      cfg.Orchestrator.FloorBypassCount,
		ConceptGateThreshold:  cfg.Orchestrator.ConceptGateThreshold,
		ConceptGateMinTerms:   cfg.Orchestrator.ConceptGateMinTerms,
		DiversityFraction:     cfg.Orchestrator.DiversityFraction,
		FastSources:           fastSources,
		SupplementaryWait:     cfg.Orchestrator.SupplementaryWait,
	}
}

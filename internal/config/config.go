// Package config provides configuration management for the discovery engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the discovery engine.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Contact is the operator contact propagated to polite-pool APIs.
	Contact ContactConfig `mapstructure:"contact"`
	// LLM contains settings for the OpenAI-compatible client used by
	// the LLM/embedding rankers and query understanding.
	LLM LLMConfig `mapstructure:"llm"`
	// Ranker selects the ranking strategy.
	Ranker RankerConfig `mapstructure:"ranker"`
	// Orchestrator contains fan-out and pipeline tunables.
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	// Resolver contains PDF resolver tunables.
	Resolver ResolverConfig `mapstructure:"resolver"`
	// Unpaywall contains open-access lookup settings.
	Unpaywall UnpaywallConfig `mapstructure:"unpaywall"`
	// PaperSources contains per-provider API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace is the Prometheus metric namespace.
	Namespace string `mapstructure:"namespace"`
}

// ContactConfig identifies the operator to polite-pool APIs.
type ContactConfig struct {
	// Email is sent as the mailto parameter to Crossref/OpenAlex and as
	// the email parameter to Unpaywall and NCBI.
	Email string `mapstructure:"email"`
	// UserAgent is sent on outbound requests where a custom UA is expected.
	UserAgent string `mapstructure:"user_agent"`
}

// LLMConfig holds settings for the OpenAI-compatible client.
type LLMConfig struct {
	// APIKey is the API key (loaded from DISCOVERY_LLM_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// ChatModel is the chat-completion model name.
	ChatModel string `mapstructure:"chat_model"`
	// EmbeddingModel is the embeddings model name.
	EmbeddingModel string `mapstructure:"embedding_model"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// UnderstandQueries enables the query-understanding supplementary phase.
	UnderstandQueries bool `mapstructure:"understand_queries"`
}

// Ranking strategies.
const (
	RankerLexical   = "lexical"
	RankerHeuristic = "heuristic"
	RankerLLM       = "llm"
	RankerEmbedding = "embedding"
)

// RankerConfig selects the ranking strategy.
type RankerConfig struct {
	// Strategy is one of lexical, heuristic, llm, embedding.
	Strategy string `mapstructure:"strategy"`
}

// OrchestratorConfig holds fan-out and pipeline tunables.
type OrchestratorConfig struct {
	// MaxConcurrentSearches bounds simultaneous provider calls.
	MaxConcurrentSearches int `mapstructure:"max_concurrent_searches"`
	// SearchTimeout is the per-provider budget in normal mode.
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	// FastSearchTimeout is the per-provider budget in fast mode.
	FastSearchTimeout time.Duration `mapstructure:"fast_search_timeout"`
	// EarlyExitMinSources is the minimum finished sources before fast-mode early exit.
	EarlyExitMinSources int `mapstructure:"early_exit_min_sources"`
	// EarlyExitFloor is the minimum wall-clock time before fast-mode early exit.
	EarlyExitFloor time.Duration `mapstructure:"early_exit_floor"`
	// RelevanceFloor drops papers scoring below it (bypassed for small result sets).
	RelevanceFloor float64 `mapstructure:"relevance_floor"`
	// FloorBypassCount keeps the top N papers regardless of the floor.
	FloorBypassCount int `mapstructure:"floor_bypass_count"`
	// ConceptGateThreshold is the core-term fraction below which scores are penalized.
	ConceptGateThreshold float64 `mapstructure:"concept_gate_threshold"`
	// ConceptGateMinTerms is the minimum core-term count for the gate to engage.
	ConceptGateMinTerms int `mapstructure:"concept_gate_min_terms"`
	// DiversityFraction caps one source's share of the final list.
	DiversityFraction float64 `mapstructure:"diversity_fraction"`
	// FastSources are the providers used by the supplementary phase.
	FastSources []string `mapstructure:"fast_sources"`
	// SupplementaryWait is the grace period for phrasings to arrive.
	SupplementaryWait time.Duration `mapstructure:"supplementary_wait"`
}

// ResolverConfig holds PDF resolver tunables.
type ResolverConfig struct {
	// Enabled controls whether PDF resolution runs at all.
	Enabled bool `mapstructure:"enabled"`
	// MaxConcurrentProbes bounds simultaneous per-paper resolutions.
	MaxConcurrentProbes int `mapstructure:"max_concurrent_probes"`
	// ProbeTimeout is the budget for a single HTTP probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// UnpaywallConfig holds open-access lookup settings.
type UnpaywallConfig struct {
	// BaseURL is the Unpaywall API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for lookups.
	Timeout time.Duration `mapstructure:"timeout"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// Crossref contains Crossref API settings.
	Crossref PaperSourceConfig `mapstructure:"crossref"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
	// PubMed contains PubMed API settings.
	PubMed PaperSourceConfig `mapstructure:"pubmed"`
	// Core contains CORE API settings.
	Core PaperSourceConfig `mapstructure:"core"`
	// Scopus contains Scopus API settings.
	Scopus PaperSourceConfig `mapstructure:"scopus"`
	// EuropePMC contains Europe PMC API settings.
	EuropePMC PaperSourceConfig `mapstructure:"europepmc"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// DISCOVERY_PAPER_SOURCES_SCOPUS_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("DISCOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/discovery-engine")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv("DISCOVERY_LLM_API_KEY")

	// Paper source API keys.
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv("DISCOVERY_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.PubMed.APIKey = os.Getenv("DISCOVERY_PAPER_SOURCES_PUBMED_API_KEY")
	cfg.PaperSources.Core.APIKey = os.Getenv("DISCOVERY_PAPER_SOURCES_CORE_API_KEY")
	cfg.PaperSources.Scopus.APIKey = os.Getenv("DISCOVERY_PAPER_SOURCES_SCOPUS_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "discovery_engine")

	// Contact defaults
	v.SetDefault("contact.email", "")
	v.SetDefault("contact.user_agent", "discovery-engine/1.0")

	// LLM defaults
	// API key is loaded exclusively from the environment (see loadSecrets).
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.understand_queries", false)

	// Ranker defaults
	v.SetDefault("ranker.strategy", RankerLexical)

	// Orchestrator defaults
	v.SetDefault("orchestrator.max_concurrent_searches", 4)
	v.SetDefault("orchestrator.search_timeout", "20s")
	v.SetDefault("orchestrator.fast_search_timeout", "8s")
	v.SetDefault("orchestrator.early_exit_min_sources", 3)
	v.SetDefault("orchestrator.early_exit_floor", "3s")
	v.SetDefault("orchestrator.relevance_floor", 0.25)
	v.SetDefault("orchestrator.floor_bypass_count", 5)
	v.SetDefault("orchestrator.concept_gate_threshold", 0.3)
	v.SetDefault("orchestrator.concept_gate_min_terms", 3)
	v.SetDefault("orchestrator.diversity_fraction", 0.4)
	v.SetDefault("orchestrator.fast_sources", []string{"arxiv", "openalex", "crossref", "europepmc"})
	v.SetDefault("orchestrator.supplementary_wait", "2s")

	// Resolver defaults
	v.SetDefault("resolver.enabled", true)
	v.SetDefault("resolver.max_concurrent_probes", 16)
	v.SetDefault("resolver.probe_timeout", "10s")

	// Unpaywall defaults (active only when contact.email is set)
	v.SetDefault("unpaywall.base_url", "https://api.unpaywall.org/v2")
	v.SetDefault("unpaywall.timeout", "10s")

	// Paper sources defaults - arXiv
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 0.33) // arXiv asks for one request per 3 seconds
	v.SetDefault("paper_sources.arxiv.max_results", 100)

	// Paper sources defaults - Semantic Scholar
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("paper_sources.semantic_scholar.max_results", 100)

	// Paper sources defaults - Crossref
	v.SetDefault("paper_sources.crossref.enabled", true)
	v.SetDefault("paper_sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("paper_sources.crossref.timeout", "30s")
	v.SetDefault("paper_sources.crossref.rate_limit", 2.0)
	v.SetDefault("paper_sources.crossref.max_results", 100)

	// Paper sources defaults - OpenAlex
	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.timeout", "30s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)
	v.SetDefault("paper_sources.openalex.max_results", 200)

	// Paper sources defaults - PubMed
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("paper_sources.pubmed.max_results", 100)

	// Paper sources defaults - CORE (disabled by default, requires API key)
	v.SetDefault("paper_sources.core.enabled", false)
	v.SetDefault("paper_sources.core.base_url", "https://api.core.ac.uk/v3")
	v.SetDefault("paper_sources.core.timeout", "30s")
	v.SetDefault("paper_sources.core.rate_limit", 0.15)
	v.SetDefault("paper_sources.core.max_results", 100)

	// Paper sources defaults - Scopus (disabled by default, requires API key)
	v.SetDefault("paper_sources.scopus.enabled", false)
	v.SetDefault("paper_sources.scopus.base_url", "https://api.elsevier.com/content")
	v.SetDefault("paper_sources.scopus.timeout", "30s")
	v.SetDefault("paper_sources.scopus.rate_limit", 5.0)
	v.SetDefault("paper_sources.scopus.max_results", 100)

	// Paper sources defaults - Europe PMC
	v.SetDefault("paper_sources.europepmc.enabled", true)
	v.SetDefault("paper_sources.europepmc.base_url", "https://www.ebi.ac.uk/europepmc/webservices/rest")
	v.SetDefault("paper_sources.europepmc.timeout", "30s")
	v.SetDefault("paper_sources.europepmc.rate_limit", 5.0)
	v.SetDefault("paper_sources.europepmc.max_results", 100)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate ranker strategy and its dependencies.
	switch strings.ToLower(c.Ranker.Strategy) {
	case RankerLexical, RankerHeuristic:
	case RankerLLM, RankerEmbedding:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("ranker strategy %q requires DISCOVERY_LLM_API_KEY to be set", c.Ranker.Strategy)
		}
	default:
		return fmt.Errorf("invalid ranker strategy: %s", c.Ranker.Strategy)
	}

	if c.LLM.UnderstandQueries && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.understand_queries requires DISCOVERY_LLM_API_KEY to be set")
	}

	// Validate orchestrator tunables.
	if c.Orchestrator.MaxConcurrentSearches <= 0 {
		return fmt.Errorf("orchestrator max_concurrent_searches must be positive")
	}
	if c.Orchestrator.RelevanceFloor < 0 || c.Orchestrator.RelevanceFloor > 1 {
		return fmt.Errorf("orchestrator relevance_floor must be between 0 and 1")
	}
	if c.Orchestrator.ConceptGateThreshold < 0 || c.Orchestrator.ConceptGateThreshold > 1 {
		return fmt.Errorf("orchestrator concept_gate_threshold must be between 0 and 1")
	}
	if c.Orchestrator.DiversityFraction <= 0 || c.Orchestrator.DiversityFraction > 1 {
		return fmt.Errorf("orchestrator diversity_fraction must be in (0, 1]")
	}

	if c.Resolver.Enabled && c.Resolver.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("resolver max_concurrent_probes must be positive")
	}

	return nil
}

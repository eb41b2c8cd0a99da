package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "discovery_engine", cfg.Metrics.Namespace)

	// LLM defaults
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.False(t, cfg.LLM.UnderstandQueries)

	// Ranker defaults
	assert.Equal(t, RankerLexical, cfg.Ranker.Strategy)

	// Orchestrator defaults
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrentSearches)
	assert.Equal(t, 3, cfg.Orchestrator.EarlyExitMinSources)
	assert.Equal(t, 0.25, cfg.Orchestrator.RelevanceFloor)
	assert.Equal(t, 0.3, cfg.Orchestrator.ConceptGateThreshold)
	assert.Equal(t, 0.4, cfg.Orchestrator.DiversityFraction)
	assert.Equal(t, []string{"arxiv", "openalex", "crossref", "europepmc"}, cfg.Orchestrator.FastSources)

	// Resolver defaults
	assert.True(t, cfg.Resolver.Enabled)
	assert.Equal(t, 16, cfg.Resolver.MaxConcurrentProbes)

	// Paper sources defaults
	assert.True(t, cfg.PaperSources.ArXiv.Enabled)
	assert.True(t, cfg.PaperSources.SemanticScholar.Enabled)
	assert.True(t, cfg.PaperSources.Crossref.Enabled)
	assert.True(t, cfg.PaperSources.OpenAlex.Enabled)
	assert.True(t, cfg.PaperSources.PubMed.Enabled)
	assert.False(t, cfg.PaperSources.Core.Enabled)   // Requires API key
	assert.False(t, cfg.PaperSources.Scopus.Enabled) // Requires API key
	assert.True(t, cfg.PaperSources.EuropePMC.Enabled)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	// Set environment variables with DISCOVERY prefix
	t.Setenv("DISCOVERY_SERVER_HTTP_PORT", "8888")
	t.Setenv("DISCOVERY_LOGGING_LEVEL", "debug")
	t.Setenv("DISCOVERY_CONTACT_EMAIL", "ops@example.org")
	t.Setenv("DISCOVERY_RANKER_STRATEGY", "heuristic")
	t.Setenv("DISCOVERY_ORCHESTRATOR_MAX_CONCURRENT_SEARCHES", "8")
	t.Setenv("DISCOVERY_ORCHESTRATOR_SEARCH_TIMEOUT", "40s")
	t.Setenv("DISCOVERY_PAPER_SOURCES_PUBMED_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "ops@example.org", cfg.Contact.Email)
	assert.Equal(t, RankerHeuristic, cfg.Ranker.Strategy)
	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrentSearches)
	assert.Equal(t, "40s", cfg.Orchestrator.SearchTimeout.String())
	assert.False(t, cfg.PaperSources.PubMed.Enabled)
}

func TestLoad_APIKeysFromEnvOnly(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DISCOVERY_LLM_API_KEY", "sk-test")
	t.Setenv("DISCOVERY_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY", "ss-key-test")
	t.Setenv("DISCOVERY_PAPER_SOURCES_SCOPUS_API_KEY", "scopus-key-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "ss-key-test", cfg.PaperSources.SemanticScholar.APIKey)
	assert.Equal(t, "scopus-key-test", cfg.PaperSources.Scopus.APIKey)

	// Unset keys should be empty.
	assert.Empty(t, cfg.PaperSources.PubMed.APIKey)
	assert.Empty(t, cfg.PaperSources.Core.APIKey)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name        string
		port        int
		expectedErr string
	}{
		{name: "HTTP port zero", port: 0, expectedErr: "invalid HTTP port: 0"},
		{name: "HTTP port negative", port: -1, expectedErr: "invalid HTTP port: -1"},
		{name: "HTTP port too high", port: 70000, expectedErr: "invalid HTTP port: 70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.HTTPPort = tt.port
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = level
			err := cfg.Validate()
			assert.NoError(t, err)
		})
	}

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level: invalid")
	})
}

func TestValidate_RankerStrategy(t *testing.T) {
	t.Run("unknown strategy", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ranker.Strategy = "alphabetical"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid ranker strategy")
	})

	t.Run("llm strategy without key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ranker.Strategy = RankerLLM
		cfg.LLM.APIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DISCOVERY_LLM_API_KEY")
	})

	t.Run("llm strategy with key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ranker.Strategy = RankerLLM
		cfg.LLM.APIKey = "sk-test"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("embedding strategy without key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ranker.Strategy = RankerEmbedding
		cfg.LLM.APIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DISCOVERY_LLM_API_KEY")
	})
}

func TestValidate_QueryUnderstanding(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.UnderstandQueries = true
	cfg.LLM.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understand_queries")
}

func TestValidate_OrchestratorTunables(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name: "zero concurrency",
			modifyFunc: func(c *Config) {
				c.Orchestrator.MaxConcurrentSearches = 0
			},
			expectedErr: "max_concurrent_searches must be positive",
		},
		{
			name: "relevance floor out of range",
			modifyFunc: func(c *Config) {
				c.Orchestrator.RelevanceFloor = 1.5
			},
			expectedErr: "relevance_floor must be between 0 and 1",
		},
		{
			name: "concept gate threshold out of range",
			modifyFunc: func(c *Config) {
				c.Orchestrator.ConceptGateThreshold = -0.1
			},
			expectedErr: "concept_gate_threshold must be between 0 and 1",
		},
		{
			name: "diversity fraction zero",
			modifyFunc: func(c *Config) {
				c.Orchestrator.DiversityFraction = 0
			},
			expectedErr: "diversity_fraction must be in (0, 1]",
		},
		{
			name: "resolver zero probes",
			modifyFunc: func(c *Config) {
				c.Resolver.MaxConcurrentProbes = 0
			},
			expectedErr: "max_concurrent_probes must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestHTTPAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", HTTPPort: 9000}
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddress())
}

// clearEnvVars removes all DISCOVERY_ prefixed environment variables
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "DISCOVERY_") {
			key, _, _ := strings.Cut(env, "=")
			os.Unsetenv(key)
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Ranker: RankerConfig{
			Strategy: RankerLexical,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentSearches: 4,
			RelevanceFloor:        0.25,
			ConceptGateThreshold:  0.3,
			DiversityFraction:     0.4,
		},
		Resolver: ResolverConfig{
			Enabled:             true,
			MaxConcurrentProbes: 16,
		},
	}
}

// Package config provides configuration loading for inventoryd.
//
// Configuration precedence (highest to lowest): environment variables,
// YAML config file, hardcoded defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete inventoryd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Copilot    CopilotConfig    `koanf:"copilot"`
	Search     SearchConfig     `koanf:"search"`
	Vectorizer VectorizerConfig `koanf:"vectorizer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// StoreConfig holds equipment store configuration.
type StoreConfig struct {
	// Path is the JSON snapshot file. Empty disables persistence.
	Path string `koanf:"path"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// BaseURL is the OpenAI-compatible embeddings endpoint.
	// For TEI: http://localhost:8080/v1
	// For OpenAI: https://api.openai.com/v1
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// CopilotConfig holds conversation orchestrator configuration.
type CopilotConfig struct {
	BaseURL       string        `koanf:"base_url"`
	Model         string        `koanf:"model"`
	APIKey        string        `koanf:"api_key"`
	MaxToolRounds int           `koanf:"max_tool_rounds"`
	Timeout       time.Duration `koanf:"timeout"`
}

// SearchConfig holds vector search engine configuration.
type SearchConfig struct {
	// Engine selects the search implementation: "linear" or "chromem".
	Engine string `koanf:"engine"`

	// IndexPath is the chromem persistence directory (chromem engine only).
	IndexPath string `koanf:"index_path"`

	MaxResults    int     `koanf:"max_results"`
	MinSimilarity float64 `koanf:"min_similarity"`
}

// VectorizerConfig holds embedding enrichment worker configuration.
type VectorizerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "http://localhost:8080/v1",
			Model:   "text-embedding-3-small",
			Timeout: 30 * time.Second,
		},
		Copilot: CopilotConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			MaxToolRounds: 5,
			Timeout:       60 * time.Second,
		},
		Search: SearchConfig{
			Engine:        "linear",
			MaxResults:    10,
			MinSimilarity: 0.8,
		},
		Vectorizer: VectorizerConfig{
			Enabled:       true,
			SweepInterval: time.Minute,
			RatePerSecond: 5,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Search.Engine {
	case "linear", "chromem":
	default:
		return fmt.Errorf("%w: unknown search engine %q", ErrInvalidConfig, c.Search.Engine)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("%w: search max_results must be positive", ErrInvalidConfig)
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("%w: search min_similarity must be within [-1, 1]", ErrInvalidConfig)
	}
	if c.Copilot.MaxToolRounds <= 0 {
		return fmt.Errorf("%w: copilot max_tool_rounds must be positive", ErrInvalidConfig)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "gpt-4o", cfg.Copilot.Model)
	assert.Equal(t, 5, cfg.Copilot.MaxToolRounds)
	assert.Equal(t, "linear", cfg.Search.Engine)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 0.8, cfg.Search.MinSimilarity)
	assert.True(t, cfg.Vectorizer.Enabled)
	assert.Equal(t, time.Minute, cfg.Vectorizer.SweepInterval)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
logging:
  format: console
search:
  engine: chromem
  min_similarity: 0.6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "chromem", cfg.Search.Engine)
	assert.Equal(t, 0.6, cfg.Search.MinSimilarity)

	// Unset values keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Search.MaxResults)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	t.Setenv("INVENTORYD_SERVER_PORT", "7070")
	t.Setenv("INVENTORYD_COPILOT_API_KEY", "sk-test")
	t.Setenv("INVENTORYD_SEARCH_MAX_RESULTS", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment beats the file.
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Copilot.APIKey)
	assert.Equal(t, 25, cfg.Search.MaxResults)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("INVENTORYD_SEARCH_ENGINE", "faiss")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad engine", func(c *Config) { c.Search.Engine = "faiss" }, true},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }, true},
		{"negative max results", func(c *Config) { c.Search.MaxResults = -5 }, true},
		{"similarity above one", func(c *Config) { c.Search.MinSimilarity = 1.5 }, true},
		{"similarity below minus one", func(c *Config) { c.Search.MinSimilarity = -1.5 }, true},
		{"negative similarity allowed", func(c *Config) { c.Search.MinSimilarity = -0.5 }, false},
		{"zero tool rounds", func(c *Config) { c.Copilot.MaxToolRounds = 0 }, true},
		{"console format allowed", func(c *Config) { c.Logging.Format = "console" }, false},
		{"chromem engine allowed", func(c *Config) { c.Search.Engine = "chromem" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

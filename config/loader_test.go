package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "vector", cfg.Retrieval.DefaultStrategy)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
retrieval:
  default_strategy: hybrid
  default_limit: 10
cache:
  capacity: 500
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "hybrid", cfg.Retrieval.DefaultStrategy)
	assert.Equal(t, 10, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	// 未覆盖的保持默认
	assert.Equal(t, 300, cfg.Chunking.MaxTokens)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o644))

	t.Setenv("REGRAG_SERVER_HTTP_PORT", "7070")
	t.Setenv("REGRAG_RETRIEVAL_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("REGRAG_CHUNKING_LLM_AVAILABLE", "true")
	t.Setenv("REGRAG_CACHE_TTL", "2m")
	t.Setenv("REGRAG_REDIS_ADDR", "localhost:6379")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.InDelta(t, 0.5, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.True(t, cfg.Chunking.LLMAvailable)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/regrag.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"bad strategy", func(c *Config) { c.Retrieval.DefaultStrategy = "bm25" }, "unknown default strategy"},
		{"bad threshold", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "unknown log level"},
		{"bad batch size", func(c *Config) { c.Ingest.BatchSize = -1 }, "batch_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Audit.SQLitePath == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("REGRAG_SERVER_HTTP_PORT", "not-a-number")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGRAG_SERVER_HTTP_PORT")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, float32(0.1), cfg.LLM.Temperature)
	assert.Equal(t, 10, cfg.Agent.MaxRevisions)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9090
llm:
  base_url: http://localhost:4000
  model: gpt-4o
agent:
  max_revisions: 5
sources:
  - name: vendas
    driver: postgres
    dsn: postgres://qs:qs@localhost:5432/vendas?sslmode=disable
    read_only: true
  - name: local
    driver: sqlite
    dsn: local.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "http://localhost:4000", cfg.LLM.BaseURL)
	assert.Equal(t, 5, cfg.Agent.MaxRevisions)
	require.Len(t, cfg.Sources, 2)
	assert.True(t, cfg.Sources[0].ReadOnly)

	src, ok := cfg.Source("local")
	require.True(t, ok)
	assert.Equal(t, "sqlite", src.Driver)

	_, ok = cfg.Source("nope")
	assert.False(t, ok)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUERYSENSE_SERVER_HTTP_PORT", "7070")
	t.Setenv("QUERYSENSE_LLM_API_KEY", "sk-test")
	t.Setenv("QUERYSENSE_LLM_TIMEOUT", "90s")
	t.Setenv("QUERYSENSE_AGENT_MAX_REVISIONS", "3")
	t.Setenv("QUERYSENSE_REDIS_ENABLED", "true")
	t.Setenv("QUERYSENSE_LOG_OUTPUT_PATHS", "stdout, /var/log/querysense.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Agent.MaxRevisions)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/querysense.log"}, cfg.Log.OutputPaths)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = -1 }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"zero revisions", func(c *Config) { c.Agent.MaxRevisions = 0 }},
		{"bad driver", func(c *Config) {
			c.Sources = []SourceConfig{{Name: "x", Driver: "oracle", DSN: "x"}}
		}},
		{"duplicate source", func(c *Config) {
			c.Sources = []SourceConfig{
				{Name: "a", Driver: "sqlite", DSN: "a.db"},
				{Name: "a", Driver: "sqlite", DSN: "b.db"},
			}
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/querysense/querysense/config"
)

func TestInitLogger(t *testing.T) {
	cases := []config.LogConfig{
		{Level: "debug", Format: "console"},
		{Level: "info", Format: "json", OutputPaths: []string{"stdout"}},
		{Level: "error", Format: "json", EnableCaller: true, EnableStacktrace: true},
		{},
	}
	for _, cfg := range cases {
		logger, err := initLogger(cfg)
		if err != nil {
			t.Errorf("initLogger(%+v) failed: %v", cfg, err)
			continue
		}
		logger.Debug("ignored")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  http_port: 9090
llm:
  base_url: http://localhost:11434
  model: llama3
sources:
  - name: vendas
    driver: sqlite
    dsn: vendas.db
    read_only: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("http_port = %d, want 9090", cfg.Server.HTTPPort)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "vendas" || !cfg.Sources[0].ReadOnly {
		t.Errorf("unexpected sources: %+v", cfg.Sources)
	}
	// Defaults survive partial files.
	if cfg.Agent.MaxRevisions != 10 {
		t.Errorf("max_revisions default = %d, want 10", cfg.Agent.MaxRevisions)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
sources:
  - name: bad
    driver: oracle
    dsn: x
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected validation error for unsupported driver")
	}
}

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete QuerySense configuration.
type Config struct {
	// Server holds the HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM holds the language model provider settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Agent holds the NL->SQL pipeline settings.
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Sources lists the queryable data sources.
	Sources []SourceConfig `yaml:"sources" env:"-"`

	// History holds the query history store settings.
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Redis holds the completion cache settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Auth holds the API authentication settings.
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log holds the logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds the OpenTelemetry settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimit is the per-client request rate (requests/second, 0 disables).
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// LLMConfig holds language model provider settings.
type LLMConfig struct {
	// Provider is the provider name used in logs and error labels.
	Provider string `yaml:"provider" env:"PROVIDER"`
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	Model   string `yaml:"model" env:"MODEL"`
	// Temperature defaults to 0.1: SQL generation wants determinism.
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"MAX_RETRIES"`
	// MaxPromptTokens bounds the rendered prompt size (0 disables the check).
	MaxPromptTokens int `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	// RequestsPerMinute throttles outgoing completions (0 disables).
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// AgentConfig holds NL->SQL pipeline settings.
type AgentConfig struct {
	// MaxRevisions bounds the writer/reviewer loop.
	MaxRevisions int `yaml:"max_revisions" env:"MAX_REVISIONS"`
	// SchemaIndex enables schema retrieval for large catalogs.
	SchemaIndex SchemaIndexConfig `yaml:"schema_index" env:"SCHEMA_INDEX"`
}

// SchemaIndexConfig holds schema retrieval settings.
type SchemaIndexConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// TopK is the number of tables retrieved per question.
	TopK int `yaml:"top_k" env:"TOP_K"`
	// EmbeddingModel is the OpenAI-compatible embedding model name.
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	// MinTables skips retrieval for catalogs at or below this size.
	MinTables int `yaml:"min_tables" env:"MIN_TABLES"`
}

// SourceConfig describes one queryable data source.
type SourceConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // postgres, mysql, sqlite
	DSN    string `yaml:"dsn"`
	// ReadOnly rejects generated statements other than SELECT.
	ReadOnly bool `yaml:"read_only"`
	// MaxRows caps result sets returned to clients (0 = default).
	MaxRows int `yaml:"max_rows"`
}

// HistoryConfig holds query history store settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Driver  string `yaml:"driver" env:"DRIVER"`
	DSN     string `yaml:"dsn" env:"DSN"`
}

// RedisConfig holds completion cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// JWTSecret enables bearer-token auth on /api/v1 when non-empty.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer" env:"ISSUER"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       0,
			RateBurst:       20,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			BaseURL:           "https://api.openai.com",
			Model:             "gpt-4o-mini",
			Temperature:       0.1,
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			MaxPromptTokens:   0,
			RequestsPerMinute: 0,
		},
		Agent: AgentConfig{
			MaxRevisions: 10,
			SchemaIndex: SchemaIndexConfig{
				Enabled:        false,
				TopK:           8,
				EmbeddingModel: "text-embedding-3-small",
				MinTables:      12,
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Driver:  "sqlite",
			DSN:     "querysense.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     time.Hour,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "querysense",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port must be in (0, 65535]")
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, "llm.base_url is required")
	}
	if c.LLM.Model == "" {
		errs = append(errs, "llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be in [0, 2]")
	}
	if c.Agent.MaxRevisions <= 0 {
		errs = append(errs, "agent.max_revisions must be positive")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].name is required", i))
		}
		if seen[src.Name] {
			errs = append(errs, fmt.Sprintf("duplicate source name %q", src.Name))
		}
		seen[src.Name] = true
		switch src.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("sources[%d].driver must be postgres, mysql or sqlite", i))
		}
		if src.DSN == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].dsn is required", i))
		}
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, "history.driver must be postgres, mysql or sqlite")
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be debug, info, warn or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Source returns the source config with the given name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

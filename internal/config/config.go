// Package config loads server configuration from an optional YAML file with
// environment-variable overrides. Environment always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything aurorad needs to run.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogMode    string `yaml:"log_mode"`

	// Database. Driver is "postgres" or "sqlite"; DSN is driver-specific
	// (a postgres URL, or a sqlite file path / ":memory:").
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	// Session gate.
	JWTSecret string `yaml:"jwt_secret"`

	// Completion model.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Model           string `yaml:"model"`
	MaxTokens       int64  `yaml:"max_tokens"`

	// Embeddings (OpenAI-compatible endpoint).
	EmbedBaseURL string `yaml:"embed_base_url"`
	EmbedAPIKey  string `yaml:"embed_api_key"`
	EmbedModel   string `yaml:"embed_model"`
	EmbedDims    int    `yaml:"embed_dims"`

	// Context assembly.
	HistoryWindow int `yaml:"history_window"`
	MemoryTopK    int `yaml:"memory_top_k"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, fills defaults, and validates required fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = stringOr("AURORA_LISTEN_ADDR", c.ListenAddr)
	c.LogMode = stringOr("AURORA_LOG_MODE", c.LogMode)
	c.DBDriver = stringOr("AURORA_DB_DRIVER", c.DBDriver)
	c.DBDSN = stringOr("AURORA_DB_DSN", c.DBDSN)
	c.JWTSecret = stringOr("AURORA_JWT_SECRET", c.JWTSecret)
	c.AnthropicAPIKey = stringOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.Model = stringOr("AURORA_MODEL", c.Model)
	c.MaxTokens = int64(intOr("AURORA_MAX_TOKENS", int(c.MaxTokens)))
	c.EmbedBaseURL = stringOr("AURORA_EMBED_BASE_URL", c.EmbedBaseURL)
	c.EmbedAPIKey = stringOr("AURORA_EMBED_API_KEY", c.EmbedAPIKey)
	c.EmbedModel = stringOr("AURORA_EMBED_MODEL", c.EmbedModel)
	c.EmbedDims = intOr("AURORA_EMBED_DIMS", c.EmbedDims)
	c.HistoryWindow = intOr("AURORA_HISTORY_WINDOW", c.HistoryWindow)
	c.MemoryTopK = intOr("AURORA_MEMORY_TOP_K", c.MemoryTopK)
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":3000"
	}
	if c.LogMode == "" {
		c.LogMode = "dev"
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.DBDSN == "" {
		c.DBDSN = "aurora.db"
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-20250514"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.EmbedBaseURL == "" {
		c.EmbedBaseURL = "https://api.openai.com"
	}
	if c.EmbedModel == "" {
		c.EmbedModel = "text-embedding-3-small"
	}
	if c.EmbedDims <= 0 {
		c.EmbedDims = 768
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 20
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = 3
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: jwt_secret (AURORA_JWT_SECRET) is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown db_driver %q", c.DBDriver)
	}
	return nil
}

// stringOr returns the named environment variable, or fallback when it is
// unset or empty.
func stringOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// intOr parses the named environment variable as a decimal integer, falling
// back when unset, empty, or unparseable.
func intOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

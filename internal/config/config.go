// Package config loads the argoquery YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the argoquery service configuration.
type Config struct {
	Transport string          `yaml:"transport"` // http, stdio
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Query     QueryConfig     `yaml:"query"`
	Index     IndexConfig     `yaml:"index"`
	Predict   PredictConfig   `yaml:"predict"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the DuckDB settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash, ollama, openai
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CacheConfig holds the Redis embedding cache settings. Empty Addrs disables it.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// QueryConfig holds orchestrator settings.
type QueryConfig struct {
	TimeoutSec     int `yaml:"timeout_sec"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryInitialMs int `yaml:"retry_initial_ms"`
	SemanticTopK   int `yaml:"semantic_top_k"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Concurrency   int  `yaml:"concurrency"`
	RebuildOnBoot bool `yaml:"rebuild_on_boot"`
}

// PredictConfig holds the model server settings. Empty BaseURL disables it.
type PredictConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// RateLimitConfig holds the chat endpoint token bucket.
type RateLimitConfig struct {
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

// Timeout is the per-request orchestrator deadline.
func (q QueryConfig) Timeout() time.Duration {
	return time.Duration(q.TimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies env overrides and defaults, and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyEnv lets the classic environment variables win over the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DUCKDB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Embedding.Provider = "ollama"
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Transport == "" {
		c.Transport = "http"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(".", "argoquery.duckdb")
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "ollama":
			c.Embedding.Model = "nomic-embed-text"
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		}
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = "http://localhost:11434"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Query.TimeoutSec <= 0 {
		c.Query.TimeoutSec = 30
	}
	if c.Query.RetryAttempts <= 0 {
		c.Query.RetryAttempts = 3
	}
	if c.Query.RetryInitialMs <= 0 {
		c.Query.RetryInitialMs = 100
	}
	if c.Query.SemanticTopK <= 0 {
		c.Query.SemanticTopK = 10
	}
	if c.Index.Concurrency <= 0 {
		c.Index.Concurrency = 4
	}
	if c.Predict.TimeoutSec <= 0 {
		c.Predict.TimeoutSec = 10
	}
	if c.RateLimit.RequestsPerSec <= 0 {
		c.RateLimit.RequestsPerSec = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Transport {
	case "http", "stdio":
	default:
		return fmt.Errorf("transport must be \"http\" or \"stdio\", got %q", c.Transport)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case "hash":
	case "ollama":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for ollama")
		}
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be hash, ollama or openai, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests run from package directories
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

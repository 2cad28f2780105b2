// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (prefix ATELIER_, e.g. ATELIER_ADDR)
//  2. Config file (./atelier.yaml or the path given to Load)
//  3. Default values
//
// The loaded Config is validated immediately (fail-fast) and passed by
// reference to the components that need it. Nothing reads configuration
// ambiently at call time.
//
// Security: sensitive fields (API keys, database password) are masked in
// MarshalJSON. When adding a sensitive field, update MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrNoModels indicates the model catalog is empty.
	ErrNoModels = errors.New("model catalog is empty")

	// ErrUnknownDefaultModel indicates the default model is not in the catalog.
	ErrUnknownDefaultModel = errors.New("default model not in catalog")

	// ErrInvalidMaxRounds indicates the tool-round cap is out of range.
	ErrInvalidMaxRounds = errors.New("invalid max rounds")

	// ErrInvalidReviewThreshold indicates the review score threshold is out of range.
	ErrInvalidReviewThreshold = errors.New("invalid review threshold")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidAddr indicates the listen address is empty.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// ModelConfig describes one entry of the model catalog. Capability flags are
// resolved here, once, so nothing downstream compares model name strings.
type ModelConfig struct {
	Name      string `mapstructure:"name" json:"name"`
	Label     string `mapstructure:"label" json:"label"`
	Tools     bool   `mapstructure:"tools" json:"tools"`
	Reasoning bool   `mapstructure:"reasoning" json:"reasoning"`
	Vision    bool   `mapstructure:"vision" json:"vision"`
}

// ReviewConfig tunes the search result reviewer.
type ReviewConfig struct {
	Threshold      float64 `mapstructure:"threshold" json:"threshold"`
	MaxRecommended int     `mapstructure:"max_recommended" json:"max_recommended"`
}

// SearXNGConfig configures the web search backend.
type SearXNGConfig struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// ScraperConfig configures the page scrape tool.
type ScraperConfig struct {
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	DelayMs     int `mapstructure:"delay_ms" json:"delay_ms"`
	TimeoutMs   int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// TranscribeConfig configures the whisper-compatible transcription endpoint.
type TranscribeConfig struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model   string `mapstructure:"model" json:"model"`
}

// IngestConfig tunes the document ingestion pipeline.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}

// LogConfig configures application logging.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"` // debug|info|warn|error
	JSON  bool   `mapstructure:"json" json:"json"`
}

// Config stores application configuration.
type Config struct {
	// HTTP listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" json:"addr"`

	// Model catalog and selection.
	DefaultModel string        `mapstructure:"default_model" json:"default_model"`
	Models       []ModelConfig `mapstructure:"models" json:"models"`

	// Orchestration: maximum tool rounds before a forced final answer.
	MaxRounds int `mapstructure:"max_rounds" json:"max_rounds"`

	// Model call rate limit (requests per minute, 0 disables).
	RatePerMinute int `mapstructure:"rate_per_minute" json:"rate_per_minute"`

	Review     ReviewConfig     `mapstructure:"review" json:"review"`
	SearXNG    SearXNGConfig    `mapstructure:"searxng" json:"searxng"`
	Scraper    ScraperConfig    `mapstructure:"scraper" json:"scraper"`
	Transcribe TranscribeConfig `mapstructure:"transcribe" json:"transcribe"`
	Ingest     IngestConfig     `mapstructure:"ingest" json:"ingest"`
	Log        LogConfig        `mapstructure:"log" json:"log"`

	// Conversation storage (PostgreSQL).
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load reads configuration from defaults, an optional YAML file, and the
// environment. An empty path searches for atelier.yaml in the working
// directory. The result is validated before return.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("atelier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("ATELIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")

	v.SetDefault("default_model", "gemini-2.5-flash")
	v.SetDefault("models", []map[string]any{
		{"name": "gemini-2.5-flash", "label": "Gemini 2.5 Flash", "tools": true, "vision": true},
		{"name": "gemini-2.5-pro", "label": "Gemini 2.5 Pro", "tools": true, "reasoning": true, "vision": true},
	})

	v.SetDefault("max_rounds", 2)
	v.SetDefault("rate_per_minute", 60)

	v.SetDefault("review.threshold", 0.4)
	v.SetDefault("review.max_recommended", 10)

	v.SetDefault("searxng.base_url", "http://localhost:8888")

	v.SetDefault("scraper.parallelism", 2)
	v.SetDefault("scraper.delay_ms", 1000)
	v.SetDefault("scraper.timeout_ms", 30000)

	v.SetDefault("transcribe.model", "whisper-1")

	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "atelier")
	v.SetDefault("postgres_password", "atelier_dev_password")
	v.SetDefault("postgres_db_name", "atelier")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// Model returns the catalog entry for name, or false when absent.
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// PostgresDSN builds a pgx-compatible connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Update this when adding secrets.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.Transcribe.APIKey = maskSecret(a.Transcribe.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

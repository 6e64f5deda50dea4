package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for roadcast.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Farcaster API and bot identity
	Farcaster FarcasterConfig `yaml:"farcaster"`

	// LLM provider chain (first available provider is tried first)
	LLM LLMConfig `yaml:"llm"`

	// Embedding endpoint used for feature similarity search
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Mention processing limits and thresholds
	Limits LimitsConfig `yaml:"limits"`

	// Timeouts for external calls
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"roadcast"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"roadcast"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// FarcasterConfig holds the Farcaster API endpoint and the bot's identity.
// The bot posts replies through a registered signer; the webhook secret
// authenticates incoming mention events.
type FarcasterConfig struct {
	APIBaseURL    string `yaml:"api_base_url" env:"FARCASTER_API_BASE_URL" env-default:"https://api.neynar.com"`
	APIKey        string `yaml:"-" env:"FARCASTER_API_KEY"`        // Secret - not in YAML
	SignerUUID    string `yaml:"-" env:"FARCASTER_SIGNER_UUID"`    // Secret - not in YAML
	WebhookSecret string `yaml:"-" env:"FARCASTER_WEBHOOK_SECRET"` // Secret - not in YAML
	BotFID        int64  `yaml:"bot_fid" env:"BOT_FID" env-default:"0"`
	BotHandle     string `yaml:"bot_handle" env:"BOT_HANDLE" env-default:"roadcast"`
}

// LLMConfig holds the classification/extraction provider chain.
// OpenAI covers any OpenAI-compatible endpoint (OpenRouter, vLLM, etc.)
// via BaseURL. Anthropic is the fallback when the primary fails.
type LLMConfig struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig holds an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	Model   string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
}

// IsAvailable returns true if the OpenAI-compatible provider is configured.
func (c *OpenAIConfig) IsAvailable() bool {
	return c.APIKey != "" && c.Model != ""
}

// AnthropicConfig holds the Anthropic fallback provider.
type AnthropicConfig struct {
	APIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Model  string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-20241022"`
}

// IsAvailable returns true if the Anthropic provider is configured.
func (c *AnthropicConfig) IsAvailable() bool {
	return c.APIKey != "" && c.Model != ""
}

// EmbeddingConfig holds the OpenAI-compatible embedding endpoint.
// When unconfigured, similarity search finds no candidates and every
// extracted feature is stored as a new entry.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:""`
	APIKey     string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
	Model      string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	Dimensions int    `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS" env-default:"1536"`
}

// IsAvailable returns true if the embedding provider is configured.
func (c *EmbeddingConfig) IsAvailable() bool {
	return c.APIKey != "" && c.Model != ""
}

// LimitsConfig holds mention processing limits and similarity thresholds.
type LimitsConfig struct {
	// DailyMentionLimit is the max processed mentions per author per rolling 24h.
	DailyMentionLimit int `yaml:"daily_mention_limit" env:"DAILY_MENTION_LIMIT" env-default:"20"`
	// MinUserScore is the minimum author reputation score (0..1) to process a mention.
	MinUserScore float64 `yaml:"min_user_score" env:"MIN_USER_SCORE" env-default:"0.3"`
	// MaxFeaturesPerMention caps how many features one mention can create.
	MaxFeaturesPerMention int `yaml:"max_features_per_mention" env:"MAX_FEATURES_PER_MENTION" env-default:"5"`
	// SearchThreshold is the cosine similarity floor for candidate duplicates.
	SearchThreshold float64 `yaml:"search_threshold" env:"SEARCH_THRESHOLD" env-default:"0.70"`
	// MergeThreshold is the cosine similarity floor for automatic merging.
	MergeThreshold float64 `yaml:"merge_threshold" env:"MERGE_THRESHOLD" env-default:"0.85"`
	// ThreadDepth is how many ancestor casts to fetch for conversation context.
	ThreadDepth int `yaml:"thread_depth" env:"THREAD_DEPTH" env-default:"10"`
}

// TimeoutsConfig holds per-call timeouts in seconds.
type TimeoutsConfig struct {
	LLMSeconds       int `yaml:"llm_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	FarcasterSeconds int `yaml:"farcaster_seconds" env:"FARCASTER_TIMEOUT_SECONDS" env-default:"10"`
	RunSeconds       int `yaml:"run_seconds" env:"RUN_TIMEOUT_SECONDS" env-default:"120"`
}

// LLM returns the timeout for a single LLM call.
func (c *TimeoutsConfig) LLM() time.Duration {
	return time.Duration(c.LLMSeconds) * time.Second
}

// Farcaster returns the timeout for a single Farcaster API call.
func (c *TimeoutsConfig) Farcaster() time.Duration {
	return time.Duration(c.FarcasterSeconds) * time.Second
}

// Run returns the end-to-end budget for processing one mention.
func (c *TimeoutsConfig) Run() time.Duration {
	return time.Duration(c.RunSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// config.yaml is optional; when absent, configuration comes from environment
// variables alone. The version parameter is injected at build time and set on
// the returned Config. Secrets (PGPASSWORD, FARCASTER_API_KEY, provider keys)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// IsProduction returns true when running in the production environment.
// The test webhook endpoint is disabled in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// validate enforces constraints that would otherwise surface as confusing
// runtime failures. Production additionally requires the webhook secret so
// unsigned events can never be processed.
func (c *Config) validate() error {
	if c.Limits.SearchThreshold > c.Limits.MergeThreshold {
		return fmt.Errorf("search_threshold (%v) must not exceed merge_threshold (%v)",
			c.Limits.SearchThreshold, c.Limits.MergeThreshold)
	}
	if c.Limits.DailyMentionLimit < 1 {
		return fmt.Errorf("daily_mention_limit must be at least 1, got %d", c.Limits.DailyMentionLimit)
	}
	if c.Limits.MaxFeaturesPerMention < 1 {
		return fmt.Errorf("max_features_per_mention must be at least 1, got %d", c.Limits.MaxFeaturesPerMention)
	}
	if c.IsProduction() && c.Farcaster.WebhookSecret == "" {
		return fmt.Errorf("FARCASTER_WEBHOOK_SECRET is required in production")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

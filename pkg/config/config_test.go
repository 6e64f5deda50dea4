package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdirTemp moves the test into a fresh temp directory so Load() resolves
// config.yaml (or its absence) there, and restores the working directory
// on cleanup.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func clearInterferingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "PGHOST", "PGDATABASE",
		"BOT_HANDLE", "BOT_FID", "FARCASTER_WEBHOOK_SECRET",
		"DAILY_MENTION_LIMIT", "MIN_USER_SCORE", "MAX_FEATURES_PER_MENTION",
		"SEARCH_THRESHOLD", "MERGE_THRESHOLD", "THREAD_DEPTH",
		"LLM_TIMEOUT_SECONDS", "FARCASTER_TIMEOUT_SECONDS", "RUN_TIMEOUT_SECONDS",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := chdirTemp(t)
	clearInterferingEnv(t)

	yamlContent := `
port: "8080"
env: "test"
database:
  host: "db.example.com"
farcaster:
  bot_handle: "yamlbot"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("BOT_HANDLE", "envbot")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from env), got %s", cfg.Port)
	}
	if cfg.Farcaster.BotHandle != "envbot" {
		t.Errorf("expected BotHandle=envbot (from env), got %s", cfg.Farcaster.BotHandle)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}

	// YAML value used where no env override exists (proves YAML was read)
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
}

func TestLoad_MissingConfigFileFallsBackToEnv(t *testing.T) {
	chdirTemp(t)
	clearInterferingEnv(t)

	t.Setenv("PORT", "7070")
	t.Setenv("BOT_FID", "12345")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() without config.yaml failed: %v", err)
	}

	if cfg.Port != "7070" {
		t.Errorf("expected Port=7070 (from env), got %s", cfg.Port)
	}
	if cfg.Farcaster.BotFID != 12345 {
		t.Errorf("expected BotFID=12345 (from env), got %d", cfg.Farcaster.BotFID)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	clearInterferingEnv(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "local" {
		t.Errorf("expected Env=local (default), got %s", cfg.Env)
	}
	if cfg.Farcaster.BotHandle != "roadcast" {
		t.Errorf("expected BotHandle=roadcast (default), got %s", cfg.Farcaster.BotHandle)
	}
	if cfg.Limits.DailyMentionLimit != 20 {
		t.Errorf("expected DailyMentionLimit=20 (default), got %d", cfg.Limits.DailyMentionLimit)
	}
	if cfg.Limits.MinUserScore != 0.3 {
		t.Errorf("expected MinUserScore=0.3 (default), got %v", cfg.Limits.MinUserScore)
	}
	if cfg.Limits.SearchThreshold != 0.70 {
		t.Errorf("expected SearchThreshold=0.70 (default), got %v", cfg.Limits.SearchThreshold)
	}
	if cfg.Limits.MergeThreshold != 0.85 {
		t.Errorf("expected MergeThreshold=0.85 (default), got %v", cfg.Limits.MergeThreshold)
	}
	if cfg.Timeouts.LLM().Seconds() != 30 {
		t.Errorf("expected LLM timeout 30s (default), got %v", cfg.Timeouts.LLM())
	}
	if cfg.Timeouts.Farcaster().Seconds() != 10 {
		t.Errorf("expected Farcaster timeout 10s (default), got %v", cfg.Timeouts.Farcaster())
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Embedding.Dimensions=1536 (default), got %d", cfg.Embedding.Dimensions)
	}
}

func TestLoad_ThresholdOrderingValidated(t *testing.T) {
	chdirTemp(t)
	clearInterferingEnv(t)

	t.Setenv("SEARCH_THRESHOLD", "0.9")
	t.Setenv("MERGE_THRESHOLD", "0.8")

	_, err := Load("test-version")
	if err == nil {
		t.Fatal("expected error when search_threshold exceeds merge_threshold")
	}
	if !strings.Contains(err.Error(), "merge_threshold") {
		t.Errorf("expected threshold error, got: %v", err)
	}
}

func TestLoad_ProductionRequiresWebhookSecret(t *testing.T) {
	chdirTemp(t)
	clearInterferingEnv(t)

	t.Setenv("ENVIRONMENT", "production")

	_, err := Load("test-version")
	if err == nil {
		t.Fatal("expected error when production has no webhook secret")
	}
	if !strings.Contains(err.Error(), "FARCASTER_WEBHOOK_SECRET") {
		t.Errorf("expected webhook secret error, got: %v", err)
	}

	t.Setenv("FARCASTER_WEBHOOK_SECRET", "s3cret")
	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() with webhook secret failed: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction()=true")
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "roadcast",
		Password: "secret",
		Database: "roadcast",
		SSLMode:  "disable",
	}

	got := dbCfg.ConnectionString()
	want := "host=localhost port=5432 user=roadcast password=secret dbname=roadcast sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestProviderAvailability(t *testing.T) {
	openAI := OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}
	if !openAI.IsAvailable() {
		t.Error("expected OpenAI provider available with key and model")
	}
	openAI.APIKey = ""
	if openAI.IsAvailable() {
		t.Error("expected OpenAI provider unavailable without key")
	}

	anthropic := AnthropicConfig{Model: "claude-3-5-haiku-20241022"}
	if anthropic.IsAvailable() {
		t.Error("expected Anthropic provider unavailable without key")
	}

	embedding := EmbeddingConfig{APIKey: "sk-test", Model: "text-embedding-3-small"}
	if !embedding.IsAvailable() {
		t.Error("expected embedding provider available with key and model")
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/audit"
	"github.com/roadcast-labs/roadcast/pkg/config"
	"github.com/roadcast-labs/roadcast/pkg/database"
	"github.com/roadcast-labs/roadcast/pkg/farcaster"
	"github.com/roadcast-labs/roadcast/pkg/handlers"
	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/logging"
	"github.com/roadcast-labs/roadcast/pkg/middleware"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
	"github.com/roadcast-labs/roadcast/pkg/retry"
	"github.com/roadcast-labs/roadcast/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("bot_handle", "@"+cfg.Farcaster.BotHandle),
		zap.Int64("bot_fid", cfg.Farcaster.BotFID),
		zap.String("database", cfg.Database.Host),
		zap.Bool("openai", cfg.LLM.OpenAI.IsAvailable()),
		zap.Bool("anthropic", cfg.LLM.Anthropic.IsAvailable()),
		zap.Bool("embeddings", cfg.Embedding.IsAvailable()),
	)

	// Migrations must run before the pool opens so the vector extension
	// exists when connections register the pgvector codec.
	connStr := cfg.Database.ConnectionString()
	if err := database.Migrate(connStr, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return database.NewConnection(connectCtx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MinConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	gateway := buildGateway(cfg, logger)

	client, err := farcaster.NewHTTPClient(farcaster.Config{
		BaseURL:     cfg.Farcaster.APIBaseURL,
		APIKey:      cfg.Farcaster.APIKey,
		SignerUUID:  cfg.Farcaster.SignerUUID,
		Timeout:     cfg.Timeouts.Farcaster(),
		ThreadDepth: cfg.Limits.ThreadDepth,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create Farcaster client", zap.Error(err))
	}

	projectRepo := repositories.NewProjectRepository(db)
	featureRepo := repositories.NewFeatureRepository(db)
	tagRepo := repositories.NewTagRepository(db)
	mentionLogRepo := repositories.NewMentionLogRepository(db)

	matcher := services.NewPatternMatcher(cfg.Farcaster.BotHandle)
	auditor := audit.NewSecurityAuditor(logger)
	processor := services.NewProcessor(
		services.ProcessorConfig{
			BotFID:            cfg.Farcaster.BotFID,
			BotHandle:         cfg.Farcaster.BotHandle,
			DailyMentionLimit: cfg.Limits.DailyMentionLimit,
			MinUserScore:      cfg.Limits.MinUserScore,
			MaxFeatures:       cfg.Limits.MaxFeaturesPerMention,
			MergeThreshold:    cfg.Limits.MergeThreshold,
		},
		services.ProcessorDeps{
			MentionLogs: mentionLogRepo,
			Projects:    projectRepo,
			Features:    featureRepo,
			Tags:        tagRepo,
			Client:      client,
			Intent:      services.NewIntentClassifier(matcher, gateway, projectRepo, logger),
			Extractor:   services.NewFeatureExtractor(gateway, logger),
			Tagger:      services.NewTagger(gateway, tagRepo, logger),
			Similarity:  services.NewSimilarityEngine(gateway, featureRepo, cfg.Limits.SearchThreshold, logger),
			Context:     services.NewContextBuilder(client, cfg.Farcaster.BotFID, cfg.Farcaster.BotHandle, cfg.Limits.ThreadDepth, logger),
			Setup:       services.NewProjectSetupService(projectRepo, client, cfg.Farcaster.BotHandle, logger),
			Security:    auditor,
		},
		logger,
	)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewWebhookHandler(cfg, processor, auditor, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting roadcast",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-shutdownCtx.Done()
	stop()

	// In-flight mention runs get the same budget they would have had; the
	// server stops accepting deliveries immediately.
	logger.Info("Shutting down")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Run())
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// buildGateway assembles the provider failover chain from whatever is
// configured. An empty chain is valid; the bot then runs on pattern
// matching and template extraction alone.
func buildGateway(cfg *config.Config, logger *zap.Logger) llm.Gateway {
	var providers []llm.Provider
	if cfg.LLM.OpenAI.IsAvailable() {
		provider, err := llm.NewOpenAIProvider(cfg.LLM.OpenAI.BaseURL, cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, logger)
		if err != nil {
			logger.Warn("Skipping OpenAI provider", zap.Error(err))
		} else {
			providers = append(providers, provider)
		}
	}
	if cfg.LLM.Anthropic.IsAvailable() {
		provider, err := llm.NewAnthropicProvider(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model, logger)
		if err != nil {
			logger.Warn("Skipping Anthropic provider", zap.Error(err))
		} else {
			providers = append(providers, provider)
		}
	}
	if len(providers) == 0 {
		logger.Warn("No LLM provider configured, running with deterministic fallbacks only")
	}

	var embedders []llm.Embedder
	if cfg.Embedding.IsAvailable() {
		embedder, err := llm.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions, logger)
		if err != nil {
			logger.Warn("Skipping embedding provider", zap.Error(err))
		} else {
			embedders = append(embedders, embedder)
		}
	}
	if len(embedders) == 0 {
		logger.Warn("No embedding provider configured, duplicate detection is disabled")
	}

	gateway := llm.NewFailoverGateway(providers, embedders, logger)
	gateway.CallTimeout = cfg.Timeouts.LLM()
	return gateway
}

package admin

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tramitalabs/convoca/internal/api/handlers"
	"github.com/tramitalabs/convoca/internal/cache"
	"github.com/tramitalabs/convoca/internal/chat"
	"github.com/tramitalabs/convoca/internal/config"
	"github.com/tramitalabs/convoca/internal/database"
	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/embedding"
	"github.com/tramitalabs/convoca/internal/metrics"
	"github.com/tramitalabs/convoca/internal/openai"
	"github.com/tramitalabs/convoca/internal/repository"
	"github.com/tramitalabs/convoca/internal/search"
	"github.com/tramitalabs/convoca/internal/server"
	"github.com/tramitalabs/convoca/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the convoca API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to serve search and chat")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		// Default to 10% sampling outside dev
		sampleRate := 0.1
		if cfg.Env == "dev" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      cfg.Env,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	var store cache.Store
	if cfg.HasRedis() {
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
	} else {
		store = cache.NewMemoryStore()
		logger.Info("using in-memory cache")
	}
	sessions := cache.NewSessionCache(store, cfg.SessionTTL)

	grantRepo := repository.NewGrantRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)

	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      openaisdk.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	gateway := embedding.NewGateway(embedClient, store, cfg.EmbeddingCacheTTL, metrics.EmbeddingCacheTotal, logger)

	primary := search.NewPrimaryRanker(grantRepo, cfg.MinSimilarity)
	fallback := search.NewFallbackRanker(grantRepo, cfg.MinSimilarity, cfg.EmbeddingDimensions, logger)
	ranker, err := search.SelectRanker(ctx, grantRepo, primary, fallback, logger)
	if err != nil {
		return fmt.Errorf("failed to probe vector support: %w", err)
	}

	engine := search.NewEngine(search.FusionConfig{
		RRFConstant:     cfg.RRFConstant,
		TitleExactBoost: cfg.TitleExactBoost,
		TitleMatchBoost: cfg.TitleMatchBoost,
		OrgMatchBoost:   cfg.OrgMatchBoost,
	})
	searchSvc := search.NewService(gateway, ranker, grantRepo, engine, cfg.CandidatePoolSize, logger)

	selector := chat.NewSelector(chat.SelectorConfig{
		CheapModel:        cfg.CheapModel,
		PremiumModel:      cfg.PremiumModel,
		EscalateThreshold: cfg.EscalateThreshold,
		PremiumThreshold:  cfg.PremiumThreshold,
		MinConfidence:     cfg.MinConfidence,
	})
	providers := map[domain.ModelTier]chat.ModelProvider{
		domain.TierCheap:   openai.NewChatClientWithTimeout(cfg.OpenAIAPIKey, cfg.CheapModel, cfg.ProviderTimeout),
		domain.TierPremium: openai.NewChatClientWithTimeout(cfg.OpenAIAPIKey, cfg.PremiumModel, cfg.ProviderTimeout),
	}
	orchestrator := chat.NewOrchestrator(
		chat.NewClassifier(),
		selector,
		searchSvc,
		sessions,
		grantRepo,
		providers,
		queryLogRepo,
		chat.OrchestratorConfig{
			ContextGrants: cfg.ContextGrants,
			ClarifyAbove:  cfg.ClarifyAbove,
			ClarifyBelow:  cfg.ClarifyBelow,
		},
		logger,
	)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:   handlers.NewChatHandler(orchestrator),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		GrantHandler:  handlers.NewGrantHandler(grantRepo),
		Pinger:        pool,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug || cfg.Env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

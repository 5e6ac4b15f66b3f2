// Command assistant-api serves the faculty question-answering API:
// synchronous and streaming chat over retrieved documents, feedback
// collection, chat history, and health/metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uov-ai/assistant/infrastructure/cache"
	"github.com/uov-ai/assistant/infrastructure/embedding"
	"github.com/uov-ai/assistant/infrastructure/history"
	"github.com/uov-ai/assistant/infrastructure/llm"
	"github.com/uov-ai/assistant/infrastructure/middleware"
	"github.com/uov-ai/assistant/infrastructure/vectorstore"
	"github.com/uov-ai/assistant/internal/application"
	"github.com/uov-ai/assistant/internal/config"
	"github.com/uov-ai/assistant/internal/ports"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer := otel.Tracer("assistant")
	metrics := middleware.NewPrometheusMetrics()

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		QueryPrefix:   cfg.Embedding.QueryPrefix,
		PassagePrefix: cfg.Embedding.PassagePrefix,
	}, logger.Named("embedding"))
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}

	store, err := vectorstore.NewStore(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Embedding.Dimension,
	}, logger.Named("qdrant"))
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}

	llmClient, err := llm.NewClient(cfg.LLM.Provider, llm.ClientConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Middleware: []llm.Middleware{
			llm.MetricsMiddleware(metrics),
			llm.RetryMiddleware(2, 500*time.Millisecond, 8*time.Second),
			llm.TimeoutMiddleware(cfg.LLM.Timeout),
		},
	})
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	answerCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	historyStore, err := history.Open(cfg.History.Path, logger.Named("history"))
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer historyStore.Close()

	retriever := application.NewRetriever(
		embedder, store,
		cfg.Retrieval.TopK, cfg.Retrieval.ScoreThreshold,
		logger.Named("retriever"), tracer)

	orchestrator := application.NewOrchestrator(
		retriever, llmClient, answerCache,
		application.NewGuardrailClassifier(cfg.Assistant.SelfDescription),
		cfg.Assistant.FallbackAnswer,
		metrics, logger.Named("orchestrator"), tracer)

	limiter := newIPRateLimiter(cfg.Server.RateLimitPerMinute)
	limiter.startCleanup(ctx.Done())

	srv := &server{
		orchestrator: orchestrator,
		history:      historyStore,
		searcher:     store,
		limiter:      limiter,
		logger:       logger.Named("http"),
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", httpServer.Addr),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", llmClient.GetModel()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// buildCache selects the configured cache backend. The in-memory backend
// also starts its expiry sweeper.
func buildCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (ports.AnswerCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		redisCache := cache.NewRedis(client, cfg.Cache.TTL, logger.Named("cache"))
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis cache unreachable at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		return redisCache, nil
	default:
		memCache := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL, logger.Named("cache"))
		memCache.StartSweeper(ctx, 10*time.Minute)
		return memCache, nil
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if zapLevel == zapcore.DebugLevel {
		zapCfg = zap.NewDevelopmentConfig()
	}
	return zapCfg.Build()
}

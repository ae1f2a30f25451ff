// Package main is the entry point for the store assistant API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/config"
	"github.com/vstock/store-assistant/internal/events"
	"github.com/vstock/store-assistant/internal/handler"
	"github.com/vstock/store-assistant/internal/index"
	"github.com/vstock/store-assistant/internal/llm"
	"github.com/vstock/store-assistant/internal/middleware"
	"github.com/vstock/store-assistant/internal/service"
	"github.com/vstock/store-assistant/internal/source"
	syncpkg "github.com/vstock/store-assistant/internal/sync"
	"github.com/vstock/store-assistant/pkg/logger"
	"github.com/vstock/store-assistant/pkg/metrics"
	"github.com/vstock/store-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting store assistant API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "store-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Database pool, shared by the vector index, the entity sources, and the
	// conversation store.
	pool, err := index.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	// Embedding index
	embedder, err := index.NewOpenAIEmbedder(cfg.EmbeddingEndpoint, "", cfg.EmbeddingModel)
	if err != nil {
		log.Error("failed to create embedder", zap.Error(err))
		os.Exit(1)
	}
	idx := index.New(pool, embedder, log)
	if err := idx.EnsureSchema(ctx, cfg.EmbeddingDimension); err != nil {
		log.Error("failed to ensure index schema", zap.Error(err))
		os.Exit(1)
	}

	tracker := metrics.NewTracker()

	// NATS audit events are optional. The agent degrades to no events when the
	// broker is unreachable.
	var publisher *events.Publisher
	natsClient, err := events.Connect(ctx, events.Config{
		URL:   cfg.NATSURL,
		Token: cfg.NATSToken,
	}, log)
	if err != nil {
		log.Warn("NATS unavailable, audit events disabled", zap.Error(err))
	} else {
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Warn("failed to ensure audit stream, audit events disabled", zap.Error(err))
			publisher = nil
		}
	}

	// Document sync
	var notifier syncpkg.Notifier
	if publisher != nil {
		notifier = publisher
	}
	syncer := syncpkg.NewSyncer(source.All(pool), idx, tracker, notifier, log,
		cfg.SyncBatchSize, cfg.SyncMaxAttempts, cfg.SyncRetryBackoff)
	scheduler := syncpkg.NewScheduler(syncer, cfg.SyncInterval, cfg.FreshnessTick, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Language model backends
	clients := []llm.Client{}
	ollama, err := llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel)
	if err != nil {
		log.Error("failed to create ollama client", zap.Error(err))
		os.Exit(1)
	}
	clients = append(clients, ollama)

	hf, err := llm.NewHuggingFaceClient(cfg.HuggingFaceURL, cfg.HuggingFaceToken, cfg.HuggingFaceModel)
	if err != nil {
		log.Warn("huggingface provider disabled", zap.Error(err))
	} else {
		clients = append(clients, hf)
	}

	if cfg.AnthropicAPIKey != "" {
		anthropicClient, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, "")
		if err != nil {
			log.Warn("anthropic provider disabled", zap.Error(err))
		} else {
			clients = append(clients, anthropicClient)
		}
	}

	registry, err := llm.NewRegistry(cfg.DefaultProvider, clients...)
	if err != nil {
		log.Error("failed to create provider registry", zap.Error(err))
		os.Exit(1)
	}
	aiService := llm.NewService(registry, idx, log, cfg.ChatTimeout)

	// Conversations
	repo := service.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure conversation schema", zap.Error(err))
		os.Exit(1)
	}
	store := service.NewConversationStore(repo, log)

	// Orchestrator
	var eventPublisher service.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}
	orchestrator := service.NewOrchestrator(store, aiService, idx, service.NewTTLCache(cfg.CacheTTL), tracker, eventPublisher, log)
	if err := orchestrator.Start(); err != nil {
		log.Error("failed to start orchestrator", zap.Error(err))
		os.Exit(1)
	}
	defer orchestrator.Stop()

	agentHandler := handler.NewAgentHandler(orchestrator, log)
	conversationHandler := handler.NewConversationHandler(store, log)
	syncHandler := handler.NewSyncHandler(syncer, log)
	healthHandler := handler.NewHealthHandler(idx)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/ai-agent", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleCashier, middleware.RoleAccountant)
		accounting := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant)
		admin := middleware.RequireRole(middleware.RoleAdmin)

		r.With(staff).Post("/chat", agentHandler.Chat)
		r.With(accounting).Post("/search/enhanced", agentHandler.EnhancedSearch)
		r.Get("/health", agentHandler.Health)
		r.Get("/provider/current", agentHandler.CurrentProvider)
		r.With(admin).Post("/provider/switch", agentHandler.SwitchProvider)
		r.With(admin).Post("/sync/reindex", syncHandler.Reindex)

		r.Route("/conversations", func(r chi.Router) {
			r.Use(staff)
			r.Get("/", conversationHandler.List)
			r.Get("/{id}/messages", conversationHandler.Messages)
			r.Get("/{id}/messages/search", conversationHandler.SearchMessages)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

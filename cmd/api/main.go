// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/chat"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/config"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/handler"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	natsclient "github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/nats"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/service"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/store"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-service", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Conversation store
	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()
	if p, ok := st.(purger); ok {
		go sweep(ctx, p, cfg.StoreSweepInterval, log)
	}

	// Conversation events, optional
	var (
		events service.EventPublisher
		health handler.ConnectionChecker
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS, events disabled", zap.Error(err))
		} else {
			defer natsClient.Close()

			streamManager := natsclient.NewStreamManager(natsClient)
			if err := streamManager.EnsureStream(ctx, cfg.ConversationTTL); err != nil {
				log.Error("failed to ensure stream", zap.Error(err))
				os.Exit(1)
			}
			events = streamManager
			health = natsClient
		}
	}

	// Initialize LLM clients
	registry, err := llm.NewRegistryFromConfig(map[llm.Provider]llm.ProviderConfig{
		llm.ProviderOpenAI:    {APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL},
		llm.ProviderAnthropic: {APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL},
		llm.ProviderGoogle:    {APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL},
		llm.ProviderGroq:      {APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL},
		llm.ProviderXAI:       {APIKey: cfg.XAIAPIKey, BaseURL: cfg.XAIBaseURL},
	})
	if err != nil {
		log.Error("failed to create LLM clients", zap.Error(err))
		os.Exit(1)
	}
	for _, p := range llm.Providers {
		if !registry.Configured(p) {
			log.Warn("LLM provider not configured", zap.String("provider", string(p)))
		}
	}

	// Initialize services
	conversationSvc := service.NewConversationService(st, events, log)
	chatSvc := service.NewChatService(registry, chat.NewOrchestrator(log), conversationSvc, events, cfg.SystemPrompt, log)

	router := handler.NewRouter(handler.RouterConfig{
		Chat:              handler.NewChatHandler(chatSvc, cfg.ChatRequestTimeout, log),
		Conversations:     handler.NewConversationHandler(conversationSvc, log),
		Messages:          handler.NewMessageHandler(conversationSvc, log),
		Health:            handler.NewHealthHandler(conversationSvc, health),
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// openStore selects the conversation store. Without a usable backend the
// service runs on store.Unconfigured and conversation operations degrade.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func()) {
	switch cfg.StoreDriver {
	case "memory":
		log.Info("using in-memory conversation store")
		return store.NewMemoryStore(cfg.ConversationTTL), func() {}

	case "postgres":
		if cfg.DatabaseURL == "" {
			log.Warn("DATABASE_URL not set, conversation history disabled")
			return store.Unconfigured{}, func() {}
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("invalid database configuration, conversation history disabled", zap.Error(err))
			return store.Unconfigured{}, func() {}
		}

		pg := store.NewPostgresStore(pool, cfg.ConversationTTL)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(schemaCtx); err != nil {
			// The pool reconnects on demand; operations degrade until then.
			log.Warn("failed to ensure conversation schema", zap.Error(err))
		} else {
			log.Info("connected to conversation database")
		}
		return pg, pool.Close

	default:
		log.Warn("unknown STORE_DRIVER, conversation history disabled", zap.String("driver", cfg.StoreDriver))
		return store.Unconfigured{}, func() {}
	}
}

// sweep purges expired conversations until ctx is done.
func sweep(ctx context.Context, p purger, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warn("conversation sweep failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				log.Info("purged expired conversations", zap.Int64("count", purged))
			}
		}
	}
}

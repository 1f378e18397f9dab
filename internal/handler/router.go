package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/middleware"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

// RouterConfig carries the handlers and settings the router is built from.
type RouterConfig struct {
	Chat          *ChatHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Health        *HealthHandler

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter builds the HTTP routes of the service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/chat", cfg.Chat.Capabilities)
		r.Post("/chat", cfg.Chat.Chat)

		r.Route("/conversations", func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Get("/", cfg.Conversations.List)
			r.Post("/", cfg.Conversations.Create)
			r.Delete("/", cfg.Conversations.DeleteMany)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)
				r.Put("/", cfg.Conversations.Replace)
				r.Patch("/", cfg.Messages.Append)
				r.Delete("/", cfg.Conversations.Delete)
			})
		})
	})

	return r
}

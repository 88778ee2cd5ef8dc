package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/api/middleware"
	"github.com/parley-chat/parley/internal/handlers"
	"github.com/parley-chat/parley/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, db store.DataStore, typing store.TypingStore, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (no-op without Redis)
	limiter := middleware.NewRateLimiter(redisStore, logger)
	r.Use(limiter.Middleware)

	// CORS - the web client may be served from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, typing, redisStore)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Users
	r.Post("/users", h.ProvisionUser)
	r.Get("/users", h.ListUsers)
	r.Put("/users/{id}/presence", h.SetPresence)

	// Conversations
	r.Post("/conversations", h.OpenConversation)
	r.Get("/conversations", h.ListConversations)
	r.Post("/conversations/{id}/messages", h.SendMessage)
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.Put("/conversations/{id}/typing", h.SetTyping)
	r.Post("/conversations/{id}/read", h.MarkRead)

	return r
}

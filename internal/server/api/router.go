package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dmitrijs2005/gophgram/internal/server/identity"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *Handler, dir *identity.Directory) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests.
	r.Use(requestMetrics)

	// Standard middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping).
	r.Handle("/metrics", promhttp.Handler())

	// Public routes.
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		// Authenticated routes (require a live session token).
		r.Group(func(r chi.Router) {
			r.Use(requireSession(dir))

			r.Post("/logout", h.Logout)
			r.Post("/keys/wrapped", h.StoreWrappedKey)
			r.Get("/users", h.ListUsers)

			r.Post("/messages", h.SendMessage)
			r.Post("/messages/{messageID}/delivered", h.MarkDelivered)
			r.Post("/messages/{messageID}/read", h.MarkRead)
			r.Get("/messages/inbox", h.Inbox)
			r.Get("/messages/unread", h.Unread)

			r.Get("/stream", h.Stream)
		})
	})

	return r
}

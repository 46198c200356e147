package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tanpawarit/chative-guildbot/api/middleware"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Telemetry)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	if s.deps.InteractionVerifier != nil && s.deps.InteractionResponder != nil {
		r.Post("/interactions", s.interactions)
	}

	auth := middleware.NewAPIKeyAuth(s.cfg.APIKeys)
	r.Route("/api/v1", func(r chi.Router) {
		r.With(auth.Middleware).Post("/conversations", s.createConversation)
		if s.deps.Actions != nil {
			r.With(auth.Middleware).Get("/actions", s.listActions)
		}
		if s.deps.CallbackVerifier != nil {
			r.Post("/scheduled-messages", s.deliverScheduledMessage)
		}
	})

	return r
}

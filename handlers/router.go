package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AdminTokenHash     string
	CORSAllowedOrigins []string
	Health             *HealthHandler
	Admin              *AdminHandler
	// Webhook is nil when updates arrive by long polling.
	Webhook *WebhookHandler
	Metrics http.Handler
	Log     *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", cfg.Health.Healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Webhook != nil {
		r.With(middleware.Timeout(30*time.Second)).Post("/telegram/webhook", cfg.Webhook.Receive)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(c.Handler)
		r.Use(func(next http.Handler) http.Handler {
			return AdminAuthMiddleware(cfg.AdminTokenHash, next)
		})

		r.Get("/stats", cfg.Admin.GetStats)
		r.Get("/profiles/{chat_id}", cfg.Admin.GetProfile)
		r.Post("/sweeps/reminders", cfg.Admin.RunReminders)
		r.Post("/sweeps/escalations", cfg.Admin.RunEscalations)
	})

	return r
}

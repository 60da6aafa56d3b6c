package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/internal/webchat"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger             *logging.Logger
	Calendly           *handlers.CalendlyHandler
	Chat               *conversation.Handler
	WebChat            *webchat.Handler
	Stats              *handlers.StatsHandler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = httpmiddleware.DevOrigins
	}
	r.Use(httpmiddleware.CORS(origins))
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware
	}

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Calendly != nil {
			api.Mount("/calendly", cfg.Calendly.Routes(limit))
		}
		if cfg.Stats != nil {
			api.Get("/stats", cfg.Stats.Stats)
		}
		api.Route("/chat", func(chat chi.Router) {
			if cfg.Chat != nil {
				chat.With(limit).Post("/", cfg.Chat.Chat)
			}
			if cfg.WebChat != nil {
				chat.Get("/ws", cfg.WebChat.HandleWebSocket)
				chat.Get("/history", cfg.WebChat.HandleHistory)
			}
		})
	})

	return r
}

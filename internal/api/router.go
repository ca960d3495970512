package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"query-scheduler/internal/middleware"
)

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	Validators         []middleware.TokenValidator
	NameClaim          string
	RateLimiter        *middleware.RateLimiter // nil disables rate limiting
	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

// NewRouter assembles the middleware stack and mounts h under /v1.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Validators, cfg.NameClaim, cfg.Logger))
		h.Mount(r)
	})
	return r
}

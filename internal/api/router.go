package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/castiq-transcriber/internal/api/handlers"
	"github.com/nikhilbhutani/castiq-transcriber/internal/api/middleware"
	"github.com/nikhilbhutani/castiq-transcriber/internal/config"
)

type Router struct {
	mux         *chi.Mux
	cfg         *config.Config
	transcriber handlers.Transcriber
	provider    string
	checks      map[string]handlers.Pinger
	limiter     *middleware.RateLimiter
}

// NewRouter serves transcriber, which was built around the model named by
// provider. checks feed the readiness probe.
func NewRouter(cfg *config.Config, transcriber handlers.Transcriber, provider string, checks map[string]handlers.Pinger) *Router {
	return &Router{
		mux:         chi.NewRouter(),
		cfg:         cfg,
		transcriber: transcriber,
		provider:    provider,
		checks:      checks,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.HTTP.CORSOrigins))

	if rt.cfg.HTTP.RateLimitRPS > 0 {
		rt.limiter = middleware.NewRateLimiter(rt.cfg.HTTP.RateLimitRPS, rt.cfg.HTTP.RateLimitBurst)
		r.Use(rt.limiter.Limit)
	}

	health := handlers.NewHealthHandler(rt.provider, rt.checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	transcribeH := handlers.NewTranscribeHandler(rt.transcriber, rt.cfg.Upload.Field, rt.cfg.Upload.MaxBytes)
	r.Post("/transcribe", transcribeH.Transcribe)

	return r
}

// Close stops background work started by Setup.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Stop()
	}
}

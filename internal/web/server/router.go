// Package server exposes the documentation catalog over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apidocs "github.com/fielddoc/fielddoc/internal/docs"
	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/middleware"
	"github.com/fielddoc/fielddoc/internal/web/profiling"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
)

// RouterConfig wires the documentation routes.
type RouterConfig struct {
	Docs      *Docs
	Naming    resolve.Naming
	Projector *projection.Projector
	Metrics   *metrics.Collector
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Logger      *zap.Logger

	// Tokens enables bearer authentication of the /docs routes.
	Tokens *auth.TokenService
	Scope  string
	// Clients, with Tokens, enables POST /auth/token.
	Clients auth.Clients

	// Limiter, when set, throttles the /docs routes per client.
	Limiter ratelimit.Limiter

	// Reload, when set, is mounted at /ws.
	Reload http.Handler

	// OpenAPI, when set, serves the catalog at /docs/openapi.json.
	OpenAPI *apidocs.OpenAPIGenerator

	// Profiling mounts pprof behind the /docs authentication.
	Profiling profiling.Config
}

// NewRouter builds the HTTP handler.
//
//	GET /healthz
//	GET /metrics
//	GET /ws
//	GET /docs?q=&sort=&page=&per_page=&filter[controller|method|version|module]=
//	GET /docs/errors
//	GET /docs/endpoints/{action}
//	GET /docs/openapi.json
//	POST /auth/token (auth.clients)
//	GET /debug/pprof/* (profiling.enabled)
//
// Every /docs route except openapi.json honours the field selector parameter.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, "/healthz"))

	r.Get("/healthz", cfg.Docs.handleHealth)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics.Handler())
	}

	if cfg.Reload != nil {
		r.Handle("/ws", cfg.Reload)
	}

	throttled := middleware.NewChain().Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: cfg.Limiter,
		Metrics: cfg.Metrics,
		Logger:  logger,
	}))
	if cfg.Tokens != nil && len(cfg.Clients) > 0 {
		r.Method(http.MethodPost, "/auth/token", throttled.ThenFunc(handleToken(cfg.Tokens, cfg.Clients, cfg.Scope, logger)))
	}

	protected := middleware.NewChain()
	if cfg.Tokens != nil {
		protected.Use(middleware.Auth(middleware.AuthConfig{
			Tokens: cfg.Tokens,
			Scope:  cfg.Scope,
			Logger: logger,
		}))
	}
	protected.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: cfg.Limiter,
		Metrics: cfg.Metrics,
		Logger:  logger,
	}))
	docs := protected.Append(middleware.Projection(middleware.ProjectionConfig{
		Projector: cfg.Projector,
		Naming:    cfg.Naming,
		Metrics:   cfg.Metrics,
		Logger:    logger,
	}))

	r.Route("/docs", func(r chi.Router) {
		r.Method(http.MethodGet, "/", docs.ThenFunc(cfg.Docs.handleList))
		r.Method(http.MethodGet, "/errors", docs.ThenFunc(cfg.Docs.handleErrors))
		r.Method(http.MethodGet, "/endpoints/{action}", docs.ThenFunc(cfg.Docs.handleEndpoint))
		if cfg.OpenAPI != nil {
			r.Method(http.MethodGet, "/openapi.json", protected.ThenFunc(cfg.Docs.handleOpenAPI(cfg.OpenAPI)))
		}
	})

	profiling.Mount(r, cfg.Profiling, protected.Then)

	return r
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP surface of reftabs: rendered fields, display
// configuration, theme assets and operational endpoints.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/reftabs/internal/api/middleware"
	"github.com/ManuGH/reftabs/internal/fieldview"
	"github.com/ManuGH/reftabs/internal/health"
	"github.com/ManuGH/reftabs/internal/ratelimit"
	"github.com/ManuGH/reftabs/internal/theme"
)

// Config tunes the HTTP surface.
type Config struct {
	// AssetBase is the URL prefix theme assets are served under. Absolute
	// URLs point at an external host and disable the built-in asset route.
	AssetBase string

	// TracingService names HTTP spans; empty disables request tracing.
	TracingService string

	// Sliding window limit per client, applied to every route.
	RateLimitEnabled bool
	RateLimit        int
	RateLimitWindow  time.Duration
}

// Deps are the collaborators of the server.
type Deps struct {
	Fields  *fieldview.Service
	Health  *health.Manager
	Limiter *ratelimit.Limiter // nil uses ratelimit.DefaultConfig
	Metrics http.Handler       // nil uses promhttp.Handler
}

// Server serves the reftabs HTTP API.
type Server struct {
	cfg     Config
	fields  *fieldview.Service
	health  *health.Manager
	limiter *ratelimit.Limiter
	metrics http.Handler
}

// New creates a server.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		fields:  deps.Fields,
		health:  deps.Health,
		limiter: deps.Limiter,
		metrics: deps.Metrics,
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	return s
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,

		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,

		EnableRateLimit: s.cfg.RateLimitEnabled,
		RateLimit:       s.cfg.RateLimit,
		RateLimitWindow: s.cfg.RateLimitWindow,
	})
	r.NotFound(writeNotFound)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	render := s.limiter.Middleware(ratelimit.ClassRender)
	write := s.limiter.Middleware(ratelimit.ClassWrite)

	r.With(render).Get("/entities/{type}/{id}/fields/{field}", s.handleRenderField)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(render).Get("/entities/{type}/{id}/fields/{field}", s.handleRenderFieldJSON)
		r.Get("/displays", s.handleListDisplays)
		r.Get("/displays/{type}/{bundle}/{field}/{mode}", s.handleGetDisplay)
		r.With(write).Put("/displays/{type}/{bundle}/{field}/{mode}", s.handlePutDisplay)
		r.With(write).Delete("/displays/{type}/{bundle}/{field}/{mode}", s.handleDeleteDisplay)
	})

	if base, ok := localAssetBase(s.cfg.AssetBase); ok {
		r.Handle(base+"/*", http.StripPrefix(base+"/", assetHandler()))
	}
	return r
}

// localAssetBase returns the asset prefix without its trailing slash when
// assets are served by this server.
func localAssetBase(assetBase string) (string, bool) {
	base := strings.TrimRight(assetBase, "/")
	if base == "" || !strings.HasPrefix(base, "/") {
		return "", false
	}
	return base, true
}

func assetHandler() http.Handler {
	files := http.FileServerFS(theme.Assets())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}

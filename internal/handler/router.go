// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/authx/internal/middleware"
	"github.com/olegiv/authx/internal/service"
)

// Route patterns.
const (
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"

	RouteAuth           = "/auth"
	RouteSignup         = "/signup"
	RouteLogin          = "/login"
	RouteMe             = "/me"
	RouteDashboard      = "/dashboard"
	RouteDashboardUser  = "/user"
	RouteDashboardAdmin = "/admin"
	RouteAdminEvents    = "/admin/events"
)

// RouterConfig holds everything NewRouter wires together.
// Auth and Health are required.
type RouterConfig struct {
	// BasePath prefixes the auth and dashboard routes ("" or "/api").
	BasePath string

	Auth   *service.AuthService
	Events *service.EventService
	Health *HealthHandler

	// ClientIP resolves the caller address. Defaults to the peer address.
	ClientIP func(*http.Request) string

	LoginProtection *middleware.LoginProtection
	RateLimiter     *middleware.GlobalRateLimiter
	Security        middleware.SecurityHeadersConfig
	CORS            middleware.CORSConfig

	// RequestTimeout defaults to 30 seconds.
	RequestTimeout time.Duration
	LogRequests    bool
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.ClientIP == nil {
		cfg.ClientIP = middleware.RemoteIP
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	authHandler := NewAuthHandler(cfg.Auth, cfg.ClientIP)
	dashboardHandler := NewDashboardHandler(cfg.Auth, cfg.Events)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.LogRequests {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead) // Handle HEAD requests for uptime monitoring
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.SecurityHeaders(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestPath)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	// Probes stay at the root regardless of BasePath.
	r.Get(RouteHealth, cfg.Health.Health)
	r.Get(RouteHealthLive, cfg.Health.Liveness)
	r.Get(RouteHealthReady, cfg.Health.Readiness)

	requireAuth := middleware.RequireAuth(cfg.Auth)

	routes := func(r chi.Router) {
		r.Route(RouteAuth, func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.LoginProtection != nil {
					r.Use(cfg.LoginProtection.Middleware())
				}
				r.Post(RouteSignup, authHandler.Signup)
				r.Post(RouteLogin, authHandler.Login)
			})
			r.With(requireAuth).Get(RouteMe, authHandler.Me)
		})

		r.Route(RouteDashboard, func(r chi.Router) {
			r.Use(requireAuth)
			r.Get(RouteDashboardUser, dashboardHandler.User)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(cfg.Events))
				r.Get(RouteDashboardAdmin, dashboardHandler.Admin)
				r.Get(RouteAdminEvents, dashboardHandler.Events)
			})
		})
	}

	if base := NormalizeBasePath(cfg.BasePath); base != "" {
		r.Route(base, routes)
	} else {
		routes(r)
	}

	return r
}

// NormalizeBasePath returns "" or a path with a leading slash and no
// trailing slash.
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

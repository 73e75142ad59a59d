// Package api provides the HTTP API for the waypoint route widget.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/api/handler"
	"github.com/waypointroute/waypointroute/internal/api/middleware"
	"github.com/waypointroute/waypointroute/internal/api/models"
	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/widget"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Widgets         *widget.Registry
	Providers       *resilience.Registry
	MapView         models.MapView
	ReadinessChecks map[string]handler.Check
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "waypointroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Widgets:   cfg.Widgets,
		Checks:    cfg.ReadinessChecks,
	})
	mapHandler := handler.NewMapHandler(cfg.MapView)
	widgetHandler := handler.NewWidgetHandler(cfg.Widgets)

	// Rate limits per endpoint category
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min per IP
	widgetRateLimit := middleware.RateLimitByWidget(middleware.StandardRateLimit) // 100 req/min per widget
	editRateLimit := middleware.RateLimitByWidget(middleware.EditRateLimit)       // 600 req/min per widget
	computeRateLimit := middleware.RateLimitByWidget(middleware.ComputeRateLimit) // 30 req/min per widget

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/map", mapHandler.GetMapView)

		r.Route("/widgets", func(r chi.Router) {
			r.With(standardRateLimit).Post("/", widgetHandler.Mount)

			r.Route("/{widgetId}", func(r chi.Router) {
				r.With(widgetRateLimit).Get("/", widgetHandler.Get)
				r.With(widgetRateLimit).Delete("/", widgetHandler.Unmount)
				r.With(widgetRateLimit).Post("/map-ready", widgetHandler.MapReady)

				r.Route("/waypoints", func(r chi.Router) {
					r.Use(editRateLimit)
					r.Post("/", widgetHandler.AddWaypoint)
					r.With(middleware.RequireJSON).Put("/{index}", widgetHandler.SetWaypoint)
					r.Delete("/{index}", widgetHandler.RemoveWaypoint)
				})

				// Explicit computation, one provider request each
				r.With(computeRateLimit).Post("/route:compute", widgetHandler.ComputeRoute)
			})
		})
	})

	return r
}

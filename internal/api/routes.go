// Package api provides the HTTP API for the orgwarden server.
package api

import (
	"github.com/MacJediWizard/orgwarden/internal/api/handlers"
	"github.com/MacJediWizard/orgwarden/internal/api/middleware"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/MacJediWizard/orgwarden/internal/images"
	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	Environment    config.Environment
	AllowedOrigins []string
	MaxBodyBytes   int64
	RateLimit      config.RateLimitConfig
	Version        string
}

// Services are the operations the API exposes.
type Services struct {
	Organizations handlers.OrganizationService
	Members       handlers.MembershipService
	Invitations   interface {
		handlers.InvitationService
		handlers.Inviter
	}
	Devices handlers.DeviceService
	Lookup  handlers.MemberLookup
}

// Dependencies are the collaborators of the router that are not services.
type Dependencies struct {
	Verifier     auth.TokenVerifier
	Authorizer   *auth.Authorizer
	Images       images.Resolver
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]handlers.Pinger
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, svc Services, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Environment, logger)
	if err != nil {
		return nil, err
	}
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Engine.Use(middleware.HTTPMetrics(deps.Metrics))
	}
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(cors)
	r.Engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	// Operational endpoints (no auth required)
	handlers.NewHealthHandler(deps.HealthChecks, cfg.Version, logger).RegisterPublicRoutes(r.Engine)
	if deps.Gatherer != nil {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(rateLimiter)

	// Invite links carry their own credential.
	handlers.NewInvitationsHandler(svc.Invitations, logger).RegisterPublicRoutes(apiV1)

	authed := apiV1.Group("")
	authed.Use(middleware.Authenticate(deps.Verifier, logger))

	resolver := deps.Images
	if resolver == nil {
		resolver = images.PassThrough{}
	}

	handlers.NewOrganizationsHandler(svc.Organizations, deps.Authorizer, resolver, logger).
		RegisterRoutes(authed, middleware.SystemAdminMiddleware(deps.Authorizer, logger))
	handlers.NewMembersHandler(svc.Members, svc.Invitations, svc.Lookup, deps.Authorizer, logger).
		RegisterRoutes(authed)
	handlers.NewDevicesHandler(svc.Devices, deps.Authorizer, logger).
		RegisterRoutes(authed)

	r.logger.Debug().Int("routes", len(r.Engine.Routes())).Msg("routes registered")
	return r, nil
}

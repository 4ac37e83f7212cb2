// Package main is the entrypoint for the orgwarden server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/api"
	"github.com/MacJediWizard/orgwarden/internal/api/handlers"
	"github.com/MacJediWizard/orgwarden/internal/assets"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/MacJediWizard/orgwarden/internal/db"
	"github.com/MacJediWizard/orgwarden/internal/directory"
	"github.com/MacJediWizard/orgwarden/internal/events"
	"github.com/MacJediWizard/orgwarden/internal/httpclient"
	"github.com/MacJediWizard/orgwarden/internal/images"
	"github.com/MacJediWizard/orgwarden/internal/invites"
	"github.com/MacJediWizard/orgwarden/internal/mail"
	"github.com/MacJediWizard/orgwarden/internal/membership"
	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/MacJediWizard/orgwarden/internal/orgs"
	"github.com/MacJediWizard/orgwarden/internal/registry"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/MacJediWizard/orgwarden/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting orgwarden server")

	cfg := config.LoadServerConfig()

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPrometheusMetrics(promReg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	// Storage
	var st store.Store
	healthChecks := map[string]handlers.Pinger{}
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to database")
			return 1
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to run database migrations")
			return 1
		}
		st = database
		healthChecks["database"] = database
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		st = memory.New()
	}

	// Outbound HTTP
	client, err := httpclient.New(httpclient.Options{
		Timeout:     cfg.ExternalTimeout,
		ProxyConfig: &cfg.Proxy,
		UserAgent:   "orgwarden/" + Version,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create HTTP client")
		return 1
	}
	logger.Info().Str("proxy", httpclient.Describe(&cfg.Proxy)).Msg("Outbound HTTP configured")

	var dir directory.Directory
	if cfg.Directory.Enabled() {
		dir = directory.NewInstrumented(directory.NewHTTPClient(directory.HTTPConfig{
			BaseURL:      cfg.Directory.URL,
			TokenURL:     cfg.Directory.TokenURL,
			ClientID:     cfg.Directory.ClientID,
			ClientSecret: cfg.Directory.ClientSecret,
		}, client, logger), m)
	} else {
		logger.Warn().Msg("DIRECTORY_URL not set, using in-memory directory")
		memDir := directory.NewMemory()
		memDir.AutoProvision = true
		dir = memDir
	}

	var cb callbacks.Receiver
	if cfg.Callbacks.Enabled() {
		cb = callbacks.NewInstrumented(callbacks.NewHTTPReceiver(cfg.Callbacks.URL, cfg.Callbacks.Secret, client, logger), m)
	} else {
		logger.Warn().Msg("CALLBACK_URL not set, callbacks are recorded in memory only")
		cb = callbacks.NewRecorder()
	}

	var reg registry.Registry
	if cfg.Registry.Enabled() {
		reg = registry.NewInstrumented(registry.NewHTTPClient(cfg.Registry.URL, cfg.Registry.Token, client, logger), m)
	} else {
		logger.Warn().Msg("REGISTRY_URL not set, using in-memory asset registry")
		reg = registry.NewMemory()
	}

	release, err := config.LoadReleaseConfig(cfg.AssetReleaseConfig)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load asset release config")
		return 1
	}

	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load mail templates")
		return 1
	}
	var mailer mail.Dispatcher
	if cfg.SMTP.Enabled() {
		mailer, err = mail.NewSMTPDispatcher(cfg.SMTP, renderer, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to configure SMTP")
			return 1
		}
	} else {
		logger.Warn().Msg("SMTP_HOST not set, invitation mails are logged only")
		mailer = mail.NewRecorder(renderer, logger)
	}

	resolver, err := images.New(ctx, cfg.S3)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to configure image storage")
		return 1
	}

	// Services
	bus := events.NewBus(m, logger)
	assetSvc := assets.NewService(reg, release, cb, logger)
	assetSvc.Subscribe(bus)

	memberSvc := membership.NewService(st, dir, cb, membership.Config{
		Namer:                 cfg.Namer(),
		DefaultInviteLanguage: cfg.DefaultInviteLanguage,
	}, logger)
	inviteSvc := invites.NewService(st, dir, cb, mailer, memberSvc, invites.Config{
		AcceptKeyMaxAge: cfg.AcceptKeyMaxAge,
		DefaultLanguage: cfg.DefaultInviteLanguage,
		BaseURL:         cfg.InviteBaseURL,
	}, logger)
	orgSvc := orgs.NewService(st, dir, cb, assetSvc, bus, orgs.Config{
		Namer:                 cfg.Namer(),
		DefaultInviteLanguage: cfg.DefaultInviteLanguage,
		SystemAdminRole:       cfg.SystemAdminRole,
	}, logger)

	// Authentication
	var verifiers auth.Chain
	if cfg.OIDC.Enabled() {
		oidcVerifier, err := auth.NewOIDC(ctx, auth.OIDCConfig{
			Issuer:   cfg.OIDC.Issuer,
			ClientID: cfg.OIDC.ClientID,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize OIDC")
			return 1
		}
		verifiers = append(verifiers, oidcVerifier)
	}
	if cfg.OIDC.StaticTokens != "" {
		static, err := auth.ParseStaticTokens(cfg.OIDC.StaticTokens, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to parse static tokens")
			return 1
		}
		logger.Warn().Int("tokens", static.Len()).Msg("Static bearer tokens enabled")
		verifiers = append(verifiers, static)
	}
	if len(verifiers) == 0 {
		logger.Error().Msg("No authentication configured: set OIDC_ISSUER or AUTH_STATIC_TOKENS")
		return 1
	}

	router, err := api.NewRouter(api.Config{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RateLimit:      cfg.RateLimit,
		Version:        Version,
	}, api.Services{
		Organizations: orgSvc,
		Members:       memberSvc,
		Invitations:   inviteSvc,
		Devices:       assetSvc,
		Lookup:        st,
	}, api.Dependencies{
		Verifier:     verifiers,
		Authorizer:   auth.NewAuthorizer(st, cfg.SystemAdminRole),
		Images:       resolver,
		Metrics:      m,
		Gatherer:     promReg,
		HealthChecks: healthChecks,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
		return 1
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}

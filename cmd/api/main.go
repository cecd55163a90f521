// Package main is the entrypoint for the Mastro API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/mastrohq/mastro/internal/cache"
	"github.com/mastrohq/mastro/internal/config"
	"github.com/mastrohq/mastro/internal/download"
	"github.com/mastrohq/mastro/internal/entitlement"
	"github.com/mastrohq/mastro/internal/handler"
	"github.com/mastrohq/mastro/internal/identity"
	"github.com/mastrohq/mastro/internal/middleware"
	"github.com/mastrohq/mastro/internal/notify"
	"github.com/mastrohq/mastro/internal/payment"
	"github.com/mastrohq/mastro/internal/repository"
	"github.com/mastrohq/mastro/internal/server"
	"github.com/mastrohq/mastro/internal/storage"
)

func main() {
	ctx := context.Background()

	// .env is a development convenience; production injects real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := cfg.ValidateCredentials(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Stripe
	if cfg.HasStripe() {
		stripe.Key = cfg.StripeSecretKey
	} else {
		logger.Warn("stripe credentials not configured; checkout and webhook disabled")
	}

	// Object storage
	var gateway *download.Gateway
	if cfg.HasStorage() {
		store, err := storage.New(storage.Options{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			logger.Error("failed to create storage client", "error", err)
			os.Exit(1)
		}
		gateway = download.NewGateway(repo, store, func(err error) bool {
			return errors.Is(err, repository.ErrHistoryNotFound)
		}, cfg.SignedURLTTL)
	} else {
		logger.Warn("object storage not configured; re-downloads disabled")
	}

	// Components
	verifier := identity.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer)
	admins := entitlement.NewCachedAdminDirectory(repo, cacheClient)
	engine := entitlement.NewEngine(repo, admins, logger)
	builder := payment.NewCheckoutBuilder(cfg.HasStripe(), cfg.SiteURL)
	reconciler := payment.NewReconciler(repo, cfg.StripeWebhookSecret, logger)
	mailer := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	notifier := notify.NewSignupNotifier(repo, mailer, cfg.AdminEmail, logger)

	// Handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	entitlementHandler := handler.NewEntitlementHandler(engine, logger)
	checkoutHandler := handler.NewCheckoutHandler(builder, logger)
	webhookHandler := handler.NewWebhookHandler(reconciler, logger)
	historyHandler := handler.NewHistoryHandler(repo, gateway, logger)
	signupHandler := handler.NewSignupHandler(notifier, logger)

	r := setupRouter(
		h, healthHandler, entitlementHandler, checkoutHandler,
		webhookHandler, historyHandler, signupHandler,
		verifier, cacheClient, cfg, logger,
	)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"site_url", cfg.SiteURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	entitlementHandler *handler.EntitlementHandler,
	checkoutHandler *handler.CheckoutHandler,
	webhookHandler *handler.WebhookHandler,
	historyHandler *handler.HistoryHandler,
	signupHandler *handler.SignupHandler,
	verifier *identity.Verifier,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", h.Hello)

	authCfg := middleware.AuthConfig{
		Logger:   logger,
		Verifier: verifier,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Cache:   cacheClient,
		Enabled: cfg.RateLimitEnabled,
		RPM:     cfg.RateLimitRPM,
		Burst:   cfg.RateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// The Stripe webhook authenticates by signature, not bearer token.
		r.Post("/stripe/webhook", webhookHandler.Receive)

		// Everything else requires a verified identity.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimit(rateLimitCfg))

			r.Get("/entitlement", entitlementHandler.Check)
			r.Post("/entitlement", entitlementHandler.Check)
			r.Post("/entitlement/consume", entitlementHandler.Consume)

			r.Post("/checkout", checkoutHandler.Create)

			r.Get("/history", historyHandler.List)
			r.Get("/history/download", historyHandler.Redownload)

			r.Get("/signup/notify", signupHandler.Notify)
			r.Post("/signup/notify", signupHandler.Notify)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return msg
}

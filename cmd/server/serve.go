package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/ponto/internal"
	"github.com/dukerupert/ponto/internal/auth"
	"github.com/dukerupert/ponto/internal/bootstrap"
	"github.com/dukerupert/ponto/internal/cookie"
	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/email"
	"github.com/dukerupert/ponto/internal/events"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/handler/admin"
	"github.com/dukerupert/ponto/internal/handler/storefront"
	"github.com/dukerupert/ponto/internal/handler/webhook"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/postgres"
	"github.com/dukerupert/ponto/internal/router"
	"github.com/dukerupert/ponto/internal/routes"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const metricsNamespace = "ponto"

var serveSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Ponto HTTP server.

Pending migrations are applied on startup unless --skip-migrations is set.
Configuration is read from the environment and an optional .env file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry before anything that can fail at runtime
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	// Run migrations
	if !serveSkipMigrations {
		logger.Info("Running database migrations...")
		if err := migrate(cfg.DatabaseUrl); err != nil {
			return err
		}
		logger.Info("Database migrations completed successfully")
	}

	// Initialize pgx connection pool for application
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl, postgres.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Database connection established")

	store := postgres.New(pool)

	// ==========================================================================
	// Metrics and events
	// ==========================================================================

	registry := prometheus.DefaultRegisterer
	businessMetrics := telemetry.NewBusinessMetrics(metricsNamespace, registry)
	httpMetrics := middleware.NewMetrics(metricsNamespace, registry)

	bus := events.NewBus(events.BusConfig{}, logger)
	if err := bus.RegisterMetrics(metricsNamespace, registry); err != nil {
		return fmt.Errorf("failed to register event metrics: %w", err)
	}

	if cfg.Email.Enabled {
		sender := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
			ForceTLS: cfg.Email.TLS,
		}, logger)
		notifier := events.NewNotifier(email.NewService(sender, cfg.Email.From, cfg.Email.FromName), cfg.BaseURL)
		if err := bus.Subscribe("email", notifier.Handle, notifier.Keys()...); err != nil {
			return fmt.Errorf("failed to subscribe email notifier: %w", err)
		}
		logger.Info("Order email notifications enabled", "smtp_host", cfg.Email.Host)
	}

	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = events.ConnectPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		err = bus.Subscribe("nats", publisher.Handle,
			domain.EventOrderCreated,
			domain.EventOrderPaymentUpdated,
			domain.EventOrderDeliveryUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to subscribe NATS publisher: %w", err)
		}
		logger.Info("Order events published to NATS", "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	// ==========================================================================
	// Auth
	// ==========================================================================

	tokens, err := auth.NewTokenIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize session tokens: %w", err)
	}
	authorizer, err := auth.NewAuthorizer(cfg.Auth.SuperAdminEmails, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize authorizer: %w", err)
	}

	if err := bootstrap.EnsureSuperAdmin(ctx, store, &bootstrap.AdminConfig{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Name:     cfg.Admin.Name,
	}, logger); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	settingsService := service.NewSettingsService(store, logger)
	catalogService := service.NewCatalogService(store, logger)
	checkoutService := service.NewCheckoutService(store, settingsService, logger, businessMetrics)
	allocator := service.NewOrderNumberAllocator(store, cfg.Payments.OrderNumberPrefix, cfg.Payments.OrderNumberMaxRetries, logger, businessMetrics)
	orderService := service.NewOrderService(store, checkoutService, allocator, bus, logger, businessMetrics)
	trackingService := service.NewTrackingService(store, authorizer, logger, businessMetrics)
	deliveryService := service.NewDeliveryService(store, authorizer, bus, logger, businessMetrics)
	reconciler := service.NewReconciler(store, bus, service.ReconcilerConfig{
		RequireEventID: cfg.Payments.RequireEventID,
	}, logger, businessMetrics)
	authService := service.NewAuthService(store, tokens, logger, businessMetrics)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	cookies := cookie.NewConfig("", cfg.Auth.CookieSecure)

	// Login, quotes and tracking share one per-IP limiter
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer rateLimiter.Stop()

	storefrontDeps := routes.StorefrontDeps{
		ProductListHandler:   storefront.NewProductListHandler(catalogService),
		ProductDetailHandler: storefront.NewProductDetailHandler(catalogService),
		CategoryListHandler:  storefront.NewCategoryListHandler(catalogService),
		QuoteHandler:         storefront.NewQuoteHandler(checkoutService),
		PlaceOrderHandler:    storefront.NewPlaceOrderHandler(orderService),
		TrackHandler:         storefront.NewTrackHandler(trackingService),
		AuthHandler:          storefront.NewAuthHandler(authService, cookies),
		RateLimiter:          rateLimiter,
	}

	adminDeps := routes.AdminDeps{
		LoginHandler:    admin.NewLoginHandler(authService, cookies),
		MeHandler:       admin.NewMeHandler(authorizer),
		OrderHandler:    admin.NewOrderHandler(orderService, deliveryService),
		CatalogHandler:  admin.NewCatalogHandler(catalogService),
		SettingsHandler: admin.NewSettingsHandler(settingsService, authorizer),
		RateLimiter:     rateLimiter,
	}

	webhookDeps := routes.WebhookDeps{
		PaymentHandler: webhook.NewPaymentHandler(reconciler, webhook.Config{
			StripeWebhookSecret: cfg.Payments.StripeWebhookSecret,
			MaxBodyBytes:        cfg.Payments.MaxWebhookBodyBytes,
		}, businessMetrics),
	}

	opsDeps := routes.OpsDeps{
		HealthHandler:  handler.NewHealthHandler(pool, 2*time.Second),
		MetricsHandler: httpMetrics.Handler(),
	}

	// ==========================================================================
	// Router
	// ==========================================================================

	r := router.New(
		telemetry.SentryMiddleware(),
		middleware.RequestID,
		middleware.WithPrincipal(authService),
		middleware.WithRequestLogger(logger),
		router.Recovery(logger),
		router.Logger(logger),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.Auth.CookieSecure)),
		middleware.MaxBodySize(max(middleware.DefaultMaxBodySize, cfg.Payments.MaxWebhookBodyBytes)),
	)

	routes.RegisterStorefrontRoutes(r, storefrontDeps)
	routes.RegisterAdminRoutes(r, adminDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterOpsRoutes(r, opsDeps)
	logger.Debug("Routes registered", "count", len(r.Routes()), "routes", r.Routes())

	var h http.Handler = r
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = router.CORS(cfg.CORSAllowedOrigins)(h)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", srv.Addr, "env", cfg.Env, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	// ==========================================================================
	// Shutdown: stop accepting requests, then drain the event bus so queued
	// notifications go out before the NATS connection and pool close.
	// ==========================================================================

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Error("event bus shutdown failed", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("NATS drain failed", "error", err)
		}
	}

	stats := bus.Stats()
	logger.Info("Server stopped",
		"events_processed", stats.TasksProcessed,
		"events_failed", stats.TasksFailed,
	)
	return nil
}

// migrate applies pending migrations over a short-lived database/sql handle.
func migrate(databaseURL string) error {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events/natsbus"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/resilience"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/storage/localfs"
)

// Multipart overhead on top of the largest accepted document.
const bodyLimit = int(services.MaxUploadSize) + 2<<20

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log sink (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(db, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewFanout(stdout, dbLogHandler)))

	// Log cleanup
	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Blob storage
	blobs, err := localfs.New(cfg.StoragePath)
	if err != nil {
		slog.Error("blob storage init failed", "path", cfg.StoragePath, "error", err)
		os.Exit(1)
	}

	// Workflow events (optional)
	var publisher events.Publisher = events.Nop{}
	var bus *natsbus.Publisher
	if cfg.NATSURL != "" {
		bus, err = natsbus.Connect(cfg.NATSURL, cfg.NATSSubject, resilience.NewExecutor(resilience.DefaultPolicy()))
		if err != nil {
			slog.Error("nats connection failed, events disabled", "error", err)
		} else {
			publisher = bus
			slog.Info("event bus connected", "subject", cfg.NATSSubject)
		}
	}

	m := metrics.New()
	store := repository.NewGormStore(db)

	// Services
	authService := services.NewAuthService(store, cfg)
	userService := services.NewUserService(store)
	documentService := services.NewDocumentService(store, blobs, publisher, m)
	reviewService := services.NewReviewService(store, publisher, m)
	searchService := services.NewSearchService(store)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(m.Middleware())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, store, m, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, userService),
		Health:   handlers.NewHealthHandler(store),
		Document: handlers.NewDocumentHandler(documentService, reviewService),
		Review:   handlers.NewReviewHandler(reviewService),
		Search:   handlers.NewSearchHandler(searchService),
		User:     handlers.NewUserHandler(userService),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if bus != nil {
		bus.Close()
	}
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

package main

// @title Lead Intake API
// @version 1.0
// @description Visitor enquiry intake pipeline and lead collection API.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/leadintake/config"
	"github.com/jordanlanch/leadintake/pkg/api/handlers"
	"github.com/jordanlanch/leadintake/pkg/cache"
	"github.com/jordanlanch/leadintake/pkg/database"
	"github.com/jordanlanch/leadintake/pkg/jobs"
	"github.com/jordanlanch/leadintake/pkg/leads"
	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadintake/pkg/middleware"
	"github.com/jordanlanch/leadintake/pkg/session"
	"github.com/jordanlanch/leadintake/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize the lead store
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	leadService := leads.NewService(db, cfg.DefaultPhoneRegion)
	if err := leadService.Migrate(); err != nil {
		log.Fatalf("❌ Failed to migrate lead store: %v", err)
	}
	log.Printf("✅ Lead store ready")

	// Session state lives in Redis; fall back to in-process memory when Redis
	// is unreachable so local development works without it
	var (
		provider   session.Provider
		memory     *session.MemoryProvider
		redisCache *cache.Client
	)
	redisCache, err = cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, keeping session state in memory: %v", err)
		memory = session.NewMemoryProvider(cfg.SessionTTL)
		provider = memory
		redisCache = nil
	} else {
		defer redisCache.Close()
		provider = session.NewRedisProvider(redisCache, cfg.SessionTTL)
	}
	sessions := session.NewManager(provider)

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// The intake pipeline reaches the lead collection API over HTTP even when
	// both run in this process; failures on that path stay real network errors
	leadAPIBase := cfg.LeadAPIBaseURL
	if leadAPIBase == "" {
		leadAPIBase = fmt.Sprintf("http://127.0.0.1:%s/api/v1", cfg.APIPort)
	}
	leadClient := leads.NewClient(leadAPIBase, cfg.SubmitTimeout, cfg.DedupCheckTimeout)

	teleProvider := telemetry.NewHTTPProvider(cfg.TelemetryLookupURL)

	// Initialize handlers
	intakeHandler := handlers.NewIntakeHandler(sessions, leadClient, leadClient, teleProvider, cfg, prometheusMetrics, appLogger)
	leadHandler := handlers.NewLeadHandler(leadService)
	authHandler := handlers.NewAuthHandler(cfg)

	// Initialize cron manager for session cleanup and stats
	var sweeper jobs.SessionSweeper
	if memory != nil {
		sweeper = memory
	}
	cronManager := jobs.NewCronManager(sweeper, intakeHandler, leadService, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()
	log.Printf("✅ Cron jobs started successfully")

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(5, 2) // 5 req/min for login

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.Middleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Lead Intake API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		dbStatus := "up"
		if err := database.Ping(db); err != nil {
			dbStatus = "down"
		}

		sessionStatus := "up"
		if redisCache != nil {
			if _, err := redisCache.Redis.Ping(ctx).Result(); err != nil {
				sessionStatus = "down"
			}
		}

		status := http.StatusOK
		health := "healthy"
		if dbStatus == "down" || sessionStatus == "down" {
			status = http.StatusServiceUnavailable
			health = "unhealthy"
		}

		return c.JSON(status, map[string]any{
			"status":   health,
			"database": dbStatus,
			"sessions": sessionStatus,
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "pong",
		})
	})

	// Visitor-facing intake pipeline
	intakeGroup := v1.Group("/intake")
	intakeGroup.POST("/sessions", intakeHandler.StartSession)
	intakeGroup.GET("/sessions/:id", intakeHandler.GetState)
	intakeGroup.DELETE("/sessions/:id", intakeHandler.EndSession)
	intakeGroup.PUT("/sessions/:id/fields", intakeHandler.UpdateField)
	intakeGroup.DELETE("/sessions/:id/error", intakeHandler.ClearError)
	intakeGroup.POST("/sessions/:id/submit", intakeHandler.Submit)
	intakeGroup.POST("/sessions/:id/engagement/show", intakeHandler.RequestShow)
	intakeGroup.POST("/sessions/:id/engagement/dismiss", intakeHandler.Dismiss)

	// Lead collection API
	v1.POST("/leads", leadHandler.CreateLead)
	v1.GET("/leads/check", leadHandler.CheckLead)

	// Back office
	v1.POST("/auth/login", authHandler.Login, authRateLimiter.Middleware())

	adminGroup := v1.Group("/admin")
	adminGroup.Use(custommiddleware.JWTMiddleware(cfg.JWTSecret))
	adminGroup.GET("/leads", leadHandler.ListLeads)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Lead Intake API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("⏱️  Draft debounce: %s, dedup window: %s, popup cap: %d/session",
		cfg.DraftDebounce, cfg.DedupWindow, cfg.PopupSessionCap)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

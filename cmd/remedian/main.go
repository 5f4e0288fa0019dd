package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/remedian/remedian/internal/analyzer"
	"github.com/remedian/remedian/internal/autofix"
	"github.com/remedian/remedian/internal/broadcast"
	"github.com/remedian/remedian/internal/config"
	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/handlers"
	"github.com/remedian/remedian/internal/ingest"
	"github.com/remedian/remedian/internal/ingest/adapters"
	"github.com/remedian/remedian/internal/jobs"
	"github.com/remedian/remedian/internal/middleware"
	"github.com/remedian/remedian/internal/notify"
	"github.com/remedian/remedian/internal/pipeline"
	"github.com/remedian/remedian/internal/ratelimit"
	"github.com/remedian/remedian/internal/risk"
	"github.com/remedian/remedian/internal/secrets"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Remedian...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/webhook/*",
			"/auth/login",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Database
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}
	db := database.GetDB()

	// Secrets at rest
	box, err := secrets.NewBox(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize secret encryption: %v", err)
	}

	// Webhook adapters
	registry := ingest.NewRegistry()
	registry.Register(adapters.NewCIAdapter())
	registry.Register(adapters.NewDeploymentAdapter())
	registry.Register(adapters.NewErrorTrackerAdapter())
	registry.Register(adapters.NewDBPlatformAdapter())

	// Analyzer, optionally extended by an operator rules file
	var alertAnalyzer *analyzer.Analyzer
	if cfg.AnalyzerRulesPath != "" {
		alertAnalyzer, err = analyzer.NewFromFile(cfg.AnalyzerRulesPath)
		if err != nil {
			log.Fatalf("Failed to load analyzer rules: %v", err)
		}
	} else {
		alertAnalyzer = analyzer.New()
	}

	assessor := risk.New()

	// Auto-fix executor with its action runners
	executor := autofix.New(cfg.AutoFixTimeout)
	executor.Register(&autofix.RetryWorkflowRunner{CI: &autofix.ServiceClient{
		BaseURL: cfg.CIAPIBaseURL, Token: cfg.CIAPIToken,
	}})
	executor.Register(&autofix.RedeployRunner{Deploy: &autofix.ServiceClient{
		BaseURL: cfg.DeployAPIBaseURL, Token: cfg.DeployAPIToken,
	}})
	executor.Register(&autofix.LintFixRunner{Lint: &autofix.ServiceClient{
		BaseURL: cfg.LintAPIBaseURL, Token: cfg.LintAPIToken,
	}})

	// Event stream and notifications
	hub := broadcast.NewHub()
	notifier := notify.New(box)

	// Processing pipeline
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	pipe := pipeline.New(db, alertAnalyzer, assessor, executor, notifier, hub, cfg.QueueSize)
	pipe.Start(ctx, cfg.Workers)

	// Background jobs
	stopJobs := make(chan struct{})
	go jobs.NewRetentionSweeper(db).Start(cfg.RetentionSweepInterval, stopJobs)
	go jobs.NewPendingReconciler(db, pipe, cfg.PendingGracePeriod).Start(cfg.ReconcileInterval, stopJobs)

	// HTTP surface
	limiter := ratelimit.NewKeyed(cfg.RateLimitPerMinute)
	webhookHandler := handlers.NewWebhookHandler(db, registry, box, limiter, pipe, hub, cfg.MaxWebhookBytes)
	apiHandler := handlers.NewAPIHandler(db, box, pipe)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)
	httpHandler := handlers.NewHTTPHandler()

	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	webhookHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	hub.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Webhook endpoint: http://localhost:%d/webhook/{source}", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	close(stopJobs)
	ctxCancel()

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	pipe.Wait()

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}

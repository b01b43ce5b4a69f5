package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loanbook/internal/adapters/cache"
	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/adapters/http/routes"
	"loanbook/internal/adapters/messaging"
	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/config"
	"loanbook/internal/core/services"

	"github.com/gofiber/fiber/v2"

	_ "loanbook/docs" // Swagger docs
)

// @title Loanbook API
// @version 1.0
// @description Lending back office: customers, loans, collections, borrowings and the audit log.

// @contact.name API Support

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	store := repositories.NewStore(db)

	if err := config.NewSeeder(store, cfg.Seed).Run(context.Background()); err != nil {
		log.Printf("⚠️ Warning: Failed to seed admin user: %v", err)
	}

	// Redis backs the rate limiter and the audit outbox when configured
	rdb := config.NewRedisClient(cfg.Redis)
	var limiterStorage fiber.Storage
	var outbox services.AuditOutbox = services.NewMemoryAuditOutbox()
	if rdb != nil {
		defer rdb.Close()
		limiterStorage = cache.NewLimiterStorage(rdb, "loanbook:limiter:")
		outbox = cache.NewRedisAuditOutbox(rdb)
	}

	var publisher services.EventPublisher = services.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rabbit := messaging.NewRabbitPublisher(cfg.RabbitMQ.URL)
		defer rabbit.Close()
		publisher = rabbit
	} else {
		log.Println("ℹ️ RABBITMQ_URL not set, ledger events are not published")
	}

	svc := &routes.Services{
		Auth:      services.NewAuthService(store, cfg),
		User:      services.NewUserService(store),
		Customer:  services.NewCustomerService(store),
		Loan:      services.NewLoanService(store),
		Borrowing: services.NewBorrowingService(store),
		Audit:     services.NewAuditService(store, outbox, cfg.Audit.MaxAttempts),
		Mutation: services.NewMutationService(services.MutationConfig{
			Store:     store,
			Ledger:    services.NewLedgerEngine(services.SimpleInterestAccrual),
			Outbox:    outbox,
			Publisher: publisher,
			Deferred:  cfg.Audit.Mode == config.AuditModeDeferred,
		}),
	}

	// Background jobs: audit outbox retry, token purge, nightly reconciliation
	cronService, err := services.NewCronService(svc.Audit, services.NewReconcileService(store), svc.Auth, services.CronSchedule{
		AuditRetry: cfg.Cron.AuditRetrySpec,
		Reconcile:  cfg.Cron.ReconcileSpec,
	})
	if err != nil {
		log.Fatalf("❌ Invalid cron schedule: %v", err)
	}
	cronService.Start()
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Loanbook API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, limiterStorage)

	// Setup routes
	routes.Setup(app, svc, cfg, routes.Options{
		DB:             store,
		Redis:          rdb,
		LimiterStorage: limiterStorage,
	})

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}

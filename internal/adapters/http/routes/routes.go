package routes

import (
	"loanbook/internal/adapters/http/handlers"
	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/config"
	"loanbook/internal/core/domain"
	"loanbook/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// Services are the core services the HTTP layer exposes
type Services struct {
	Auth      *services.AuthService
	User      *services.UserService
	Customer  *services.CustomerService
	Loan      *services.LoanService
	Borrowing *services.BorrowingService
	Mutation  *services.MutationService
	Audit     *services.AuditService
}

// Options carries the infrastructure the routes need besides services
type Options struct {
	DB             handlers.Pinger
	Redis          *redis.Client
	LimiterStorage fiber.Storage
	// Authenticate replaces token authentication; tests inject a fixed actor
	Authenticate fiber.Handler
}

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *Services, cfg *config.Config, opts Options) {
	healthHandler := handlers.NewHealthHandler(opts.DB, opts.Redis)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.User, cfg)
	userHandler := handlers.NewUserHandler(svc.User, svc.Mutation)
	customerHandler := handlers.NewCustomerHandler(svc.Customer, svc.Mutation)
	loanHandler := handlers.NewLoanHandler(svc.Loan, svc.Mutation)
	borrowingHandler := handlers.NewBorrowingHandler(svc.Borrowing, svc.Mutation)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	auth := opts.Authenticate
	if auth == nil {
		auth = middleware.AuthMiddleware(svc.Auth)
	}

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1", middleware.NoCacheHeaders())
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(opts.LimiterStorage), authHandler.Login)
	authRoutes.Post("/refresh", authHandler.RefreshToken)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", auth, authHandler.Me)
	authRoutes.Post("/logout-all", auth, authHandler.LogoutAll)

	// Profile routes (any authenticated user)
	profileRoutes := apiV1.Group("/profile", auth)
	profileRoutes.Get("/", userHandler.GetProfile)
	profileRoutes.Put("/", userHandler.UpdateProfile)
	profileRoutes.Put("/password", userHandler.ChangePassword)

	// User management routes (staff; the services decide per action)
	userRoutes := apiV1.Group("/users", auth, middleware.StaffOnly())
	userRoutes.Get("/", userHandler.ListUsers)
	userRoutes.Post("/", userHandler.CreateUser)
	userRoutes.Get("/:id", userHandler.GetUser)
	userRoutes.Put("/:id", userHandler.UpdateUser)
	userRoutes.Put("/:id/grants", middleware.AdminOnly(), userHandler.UpdateGrants)
	userRoutes.Put("/:id/role", userHandler.ChangeRole)
	userRoutes.Get("/:id/deletion-check", userHandler.DeletionCheck)
	userRoutes.Delete("/:id", userHandler.DeleteUser)

	// Customer routes
	customerRoutes := apiV1.Group("/customers", auth)
	customerRoutes.Get("/me", middleware.RoleMiddleware(domain.RoleCustomer), customerHandler.GetOwn)
	customerRoutes.Get("/", customerHandler.List)
	customerRoutes.Post("/", customerHandler.Create)
	customerRoutes.Get("/:id", customerHandler.Get)
	customerRoutes.Put("/:id/kyc", customerHandler.UpdateKYC)
	customerRoutes.Post("/:id/agents", customerHandler.AssignAgent)
	customerRoutes.Patch("/:id/agents/:agentId", customerHandler.SetAssignment)
	customerRoutes.Get("/:id/deletion-check", customerHandler.DeletionCheck)
	customerRoutes.Delete("/:id", customerHandler.Delete)

	// Loan routes
	loanRoutes := apiV1.Group("/loans", auth)
	loanRoutes.Get("/", loanHandler.List)
	loanRoutes.Post("/", loanHandler.Create)
	loanRoutes.Get("/:id", loanHandler.Get)
	loanRoutes.Post("/:id/activate", loanHandler.Activate)
	loanRoutes.Get("/:id/collections", loanHandler.ListCollections)
	loanRoutes.Post("/:id/collections", loanHandler.PostCollection)

	// Collection routes
	collectionRoutes := apiV1.Group("/collections", auth)
	collectionRoutes.Get("/", loanHandler.ListAllCollections)
	collectionRoutes.Get("/:id", loanHandler.GetCollection)

	// Borrowing routes (the lender's own funding, staff only)
	borrowingRoutes := apiV1.Group("/borrowings", auth, middleware.StaffOnly())
	borrowingRoutes.Get("/", borrowingHandler.List)
	borrowingRoutes.Post("/", borrowingHandler.Create)
	borrowingRoutes.Get("/:id", borrowingHandler.Get)
	borrowingRoutes.Post("/:id/repayments", borrowingHandler.Repay)

	// Audit routes (ADMIN only)
	auditRoutes := apiV1.Group("/audit-logs", auth, middleware.AdminOnly())
	auditRoutes.Get("/", auditHandler.List)
	auditRoutes.Get("/pending", auditHandler.Pending)
}

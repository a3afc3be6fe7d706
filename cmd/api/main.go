package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "dommerportal/docs" // This is for Swagger
	"dommerportal/internal/auth"
	"dommerportal/internal/config"
	"dommerportal/internal/database"
	"dommerportal/internal/email"
	"dommerportal/internal/handlers"
	"dommerportal/internal/logger"
	"dommerportal/internal/middleware"
	"dommerportal/internal/pdf"
	"dommerportal/internal/repository"
	"dommerportal/internal/scheduler"
	"dommerportal/internal/service"
	"dommerportal/internal/storage"
	"dommerportal/internal/vault"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Dommerportal API
// @version 1.0
// @description Backend API for the dressurdommer.no judging association portal

// @contact.name API Support
// @contact.email post@dressurdommer.no

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Pull runtime credentials from Vault when enabled
	if cfg.Vault.Enabled {
		if err := hydrateFromVault(cfg); err != nil {
			slog.Error("Failed to load secrets from Vault", "error", err)
			os.Exit(1)
		}
		slog.Info("Secrets loaded from Vault", "vault_addr", cfg.Vault.Address)
	}

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	reportRepo := repository.NewReportRepository(db.DB)
	yearRepo := repository.NewObservationYearRepository(db.DB)
	observationRepo := repository.NewObservationRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)
	outboxRepo := repository.NewOutboxRepository(db.DB)

	// Initialize object storage for protocol images
	objectStore, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	renderer := pdf.NewRenderer()
	dispatchService := service.NewDispatchService(reportRepo, renderer, objectStore, emailService, cfg.Dispatch.Recipient)
	reportService := service.NewReportService(reportRepo, profileRepo, objectStore, dispatchService, outboxRepo, cfg.Dispatch.Recipient)
	observationService := service.NewObservationService(observationRepo, yearRepo, notificationRepo, profileRepo, profileRepo)
	memberService := service.NewMemberService(userRepo, profileRepo, sessionRepo, authService)
	contactService := service.NewContactService(emailService, &cfg.Contact)

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(outboxRepo, dispatchService, sessionRepo, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, sessionRepo)
	rbacMw := middleware.NewRBACMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(memberService, authService)
	profileHandler := handlers.NewProfileHandler(memberService)
	adminHandler := handlers.NewAdminHandler(memberService)
	reportHandler := handlers.NewReportHandler(reportService)
	observationHandler := handlers.NewObservationHandler(observationService)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	contactHandler := handlers.NewContactHandler(contactService)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/contact", contactHandler.Submit)

	// Authenticated routes
	mux.Handle("POST /api/v1/auth/logout", authMw.Authenticate(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /api/v1/auth/logout-all", authMw.Authenticate(http.HandlerFunc(authHandler.LogoutAll)))
	mux.Handle("GET /api/v1/profile", authMw.Authenticate(http.HandlerFunc(profileHandler.GetProfile)))
	mux.Handle("PUT /api/v1/profile", authMw.Authenticate(http.HandlerFunc(profileHandler.UpdateProfile)))
	mux.Handle("GET /api/v1/notifications", authMw.Authenticate(http.HandlerFunc(notificationHandler.List)))
	mux.Handle("POST /api/v1/notifications/{id}/read", authMw.Authenticate(http.HandlerFunc(notificationHandler.MarkRead)))

	// Member routes, approved members only
	mux.Handle("GET /api/v1/reports",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.List))))
	mux.Handle("POST /api/v1/reports",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.Create))))
	mux.Handle("POST /api/v1/reports/images",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.UploadImage))))
	mux.Handle("GET /api/v1/reports/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.Get))))
	mux.Handle("PUT /api/v1/reports/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.Update))))
	mux.Handle("DELETE /api/v1/reports/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.Delete))))
	mux.Handle("POST /api/v1/reports/{id}/submit",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(reportHandler.Submit))))

	mux.Handle("GET /api/v1/observations/years",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.ListYears))))
	mux.Handle("GET /api/v1/observations/years/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.ListByYear))))
	mux.Handle("GET /api/v1/observations/approvals",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.ListPendingApprovals))))
	mux.Handle("POST /api/v1/observations",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.Create))))
	mux.Handle("PUT /api/v1/observations/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.Update))))
	mux.Handle("DELETE /api/v1/observations/{id}",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.Delete))))
	mux.Handle("POST /api/v1/observations/{id}/approve",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.Approve))))
	mux.Handle("POST /api/v1/observations/{id}/reject",
		authMw.Authenticate(rbacMw.RequireApproved(http.HandlerFunc(observationHandler.Reject))))

	// Admin routes
	mux.Handle("GET /api/v1/admin/members/pending",
		authMw.Authenticate(rbacMw.RequireAdmin(http.HandlerFunc(adminHandler.ListPendingMembers))))
	mux.Handle("POST /api/v1/admin/members/{id}/approve",
		authMw.Authenticate(rbacMw.RequireAdmin(http.HandlerFunc(adminHandler.ApproveMember))))
	mux.Handle("POST /api/v1/admin/members/{id}/reject",
		authMw.Authenticate(rbacMw.RequireAdmin(http.HandlerFunc(adminHandler.RejectMember))))
	mux.Handle("PUT /api/v1/admin/observations/years/{id}/status",
		authMw.Authenticate(rbacMw.RequireAdmin(http.HandlerFunc(observationHandler.SetYearStatus))))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			if err != nil {
				slog.Error("Failed to write health check response", "error", err)
				return
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
			return
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}

// hydrateFromVault overrides SMTP and object storage credentials with the
// values stored at the configured KV path. Keys not present in the secret
// keep their environment values.
func hydrateFromVault(cfg *config.Config) error {
	client, err := vault.NewClient(&cfg.Vault)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		return err
	}

	secret, err := client.GetSecret(ctx, cfg.Vault.SecretPath)
	if err != nil {
		return err
	}

	if v, ok := secret["smtp_username"]; ok {
		cfg.Email.SMTPUsername = v
	}
	if v, ok := secret["smtp_password"]; ok {
		cfg.Email.SMTPPassword = v
	}
	if v, ok := secret["storage_access_key"]; ok {
		cfg.Storage.AccessKey = v
	}
	if v, ok := secret["storage_secret_key"]; ok {
		cfg.Storage.SecretKey = v
	}
	if v, ok := secret["jwt_secret"]; ok {
		cfg.JWT.Secret = v
	}

	return nil
}

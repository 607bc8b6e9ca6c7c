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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/background"
	"github.com/kasemt/hrcore/internal/config"
	"github.com/kasemt/hrcore/internal/database"
	"github.com/kasemt/hrcore/internal/handlers"
	middlewareCustom "github.com/kasemt/hrcore/internal/middleware"
	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/internal/repositories"
	"github.com/kasemt/hrcore/internal/routes"
	"github.com/kasemt/hrcore/internal/services"
	pkgauth "github.com/kasemt/hrcore/pkg/auth"
	pkghttp "github.com/kasemt/hrcore/pkg/http"
	pkglogger "github.com/kasemt/hrcore/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		pkglogger.RedactedAttr("db_host", cfg.Database.Host, cfg.Server.Env),
		pkglogger.RedactedAttr("db_user", cfg.Database.User, cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	accountLockRepo := repositories.NewAccountLockRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	settingAuditRepo := repositories.NewSettingAuditRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Optional SES alert on new account locks
	var notifier services.LockNotifier
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewSESLockNotifier(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.SecurityAlertAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Services. Each security-settings consumer caches independently;
	// the invalidation hooks keep them coherent with admin writes.
	settingsService := services.NewSettingsService(settingRepo, settingAuditRepo, logger)
	policyService := services.NewPasswordPolicyService(settingRepo, logger)
	lockoutService := services.NewLockoutService(loginAttemptRepo, accountLockRepo, settingRepo, notifier, logger)
	expiryService := services.NewPasswordExpiryService(userRepo, settingRepo, logger)

	settingsService.OnInvalidate(policyService.InvalidateSettings)
	settingsService.OnInvalidate(lockoutService.InvalidateSettings)
	settingsService.OnInvalidate(expiryService.InvalidateSettings)

	authService := services.NewAuthService(userRepo, lockoutService, policyService, expiryService, tokenManager, auditLogger, logger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	settingsHandler := handlers.NewSettingsHandler(settingsService, userRepo, ipConfig)
	lockHandler := handlers.NewLockHandler(lockoutService)

	// Scheduled retention purge
	retention := background.NewRetentionJob(
		lockoutService,
		settingAuditRepo,
		logger,
		cfg.Retention.Schedule,
		cfg.Retention.LoginAttemptDays,
		cfg.Retention.SettingAuditDays,
	)
	if err := retention.Start(); err != nil {
		logger.Error("failed to start retention job", slog.Any("error", err))
		os.Exit(1)
	}

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, settingsHandler, lockHandler, tokenManager, userRepo, expiryService, auditLogger, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	retention.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMPLOYEE_ID,
// ADMIN_EMAIL and ADMIN_PASSWORD are set.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmployeeID := os.Getenv("ADMIN_EMPLOYEE_ID")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmployeeID == "" || adminEmail == "" || adminPassword == "" {
		logger.Info("admin bootstrap variables not set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmployeeID(ctx, adminEmployeeID)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		EmployeeID:        adminEmployeeID,
		Email:             adminEmail,
		PasswordHash:      hashedPassword,
		Name:              "Admin",
		Role:              "admin",
		PasswordChangedAt: &now,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}

package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/handlers"
	"github.com/kasemt/hrcore/internal/middleware"
	"github.com/kasemt/hrcore/internal/repositories"
	"github.com/kasemt/hrcore/internal/services"
	pkglogger "github.com/kasemt/hrcore/pkg/logger"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	settingsHandler *handlers.SettingsHandler,
	lockHandler *handlers.LockHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	expiryService *services.PasswordExpiryService,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)
	router.Get("/auth/password-requirements", authHandler.PasswordRequirements)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(middleware.PasswordExpiry(expiryService, auditLogger, logger))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/change-password", authHandler.ChangePassword)
		r.Post("/auth/force-change-password", authHandler.ChangePassword)

		// Any authenticated user
		r.Get("/settings/effective/{key}", settingsHandler.GetEffective)
		r.Get("/settings/user", settingsHandler.GetUserSettings)
		r.Put("/settings/user/{key}", settingsHandler.SaveUserSetting)
		r.Post("/settings/user/batch", settingsHandler.BatchSaveUserSettings)
		r.Delete("/settings/user/{key}", settingsHandler.DeleteUserSetting)

		// HR and admin
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin", "hr"))
			r.Get("/settings", settingsHandler.GetAll)
			r.Get("/settings/categories", settingsHandler.GetCategories)
			r.Get("/settings/category/{category}", settingsHandler.GetByCategory)
			r.Get("/settings/department/{departmentID}", settingsHandler.GetDepartmentSettings)
			r.Put("/settings/department/{departmentID}/{key}", settingsHandler.SaveDepartmentSetting)
		})

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))
			r.Put("/settings/{key}", settingsHandler.Update)
			r.Delete("/settings/{key}", settingsHandler.Deactivate)
			r.Post("/settings/batch", settingsHandler.BatchUpdate)
			r.Get("/settings/audit", settingsHandler.GetAudit)

			r.Get("/admin/locks/{employeeID}", lockHandler.GetStatus)
			r.Get("/admin/locks/{employeeID}/history", lockHandler.GetHistory)
			r.Post("/admin/locks/{employeeID}", lockHandler.Lock)
			r.Post("/admin/locks/{employeeID}/unlock", lockHandler.Unlock)
		})
	})
}

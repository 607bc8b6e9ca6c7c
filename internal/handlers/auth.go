package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/internal/services"
	pkghttp "github.com/kasemt/hrcore/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, identifier, password, ipAddress, userAgent string) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID, ipAddress, userAgent string)
	PasswordRequirements(ctx context.Context) []string
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest carries the login handle (employee ID or email) and password
type LoginRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ChangePasswordRequest carries a password rotation
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// RefreshTokenRequest carries the refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.EmployeeID = strings.TrimSpace(req.EmployeeID)

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.service.Login(r.Context(), req.EmployeeID, req.Password, ipAddress, userAgent)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"user":                 result.User,
		"tokens":               result.Tokens,
		"redirect_to":          result.RedirectTo,
		"must_change_password": result.MustChangePassword,
		"password_expiry":      result.PasswordExpiry,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var lockedErr *services.AccountLockedError
	if errors.As(err, &lockedErr) {
		body := map[string]any{
			"success":           false,
			"message":           "Account is locked due to too many failed login attempts",
			"locked":            true,
			"minutes_remaining": lockedErr.Status.MinutesRemaining,
		}
		if lockedErr.Status.LockedUntil != nil {
			body["locked_until"] = lockedErr.Status.LockedUntil
		}
		if lockedErr.Check != nil {
			body["failed_attempts"] = lockedErr.Check.FailedAttempts
			body["max_attempts"] = lockedErr.Check.MaxAttempts
			body["lock_duration"] = lockedErr.Check.LockDuration
		}
		writeJSON(w, http.StatusUnauthorized, body)
		return
	}

	var credsErr *services.InvalidCredentialsError
	if errors.As(err, &credsErr) {
		body := map[string]any{
			"success": false,
			"message": "Invalid employee ID or password",
		}
		if credsErr.Check != nil {
			body["remaining_attempts"] = credsErr.Check.RemainingAttempts
		}
		writeJSON(w, http.StatusUnauthorized, body)
		return
	}

	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Employee ID and password are required")
	case errors.Is(err, models.ErrAccountInactive),
		errors.Is(err, models.ErrAccountSuspended):
		// Generic message so account state is not enumerable
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, ipAddress)
	if err != nil {
		var policyErr *services.PasswordPolicyError
		switch {
		case errors.As(err, &policyErr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "Password does not meet requirements",
				"errors":  policyErr.Errors,
			})
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		var lockedErr *services.AccountLockedError
		if errors.As(err, &lockedErr) {
			pkghttp.WriteUnauthorized(w, "Account is locked")
			return
		}
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired refresh token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tokens":  tokens,
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	h.service.Logout(r.Context(), claims.UserID, ipAddress, r.Header.Get("User-Agent"))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

// PasswordRequirements handles GET /auth/password-requirements
func (h *AuthHandler) PasswordRequirements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"requirements": h.service.PasswordRequirements(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

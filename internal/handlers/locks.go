package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/models"
	pkghttp "github.com/kasemt/hrcore/pkg/http"
)

// LockoutServiceInterface defines the admin-facing lock operations
type LockoutServiceInterface interface {
	IsAccountLocked(ctx context.Context, employeeID string) (models.LockStatus, error)
	Lock(ctx context.Context, employeeID string, userID *string, reason string) (*models.AccountLock, error)
	Unlock(ctx context.Context, employeeID string, unlockedBy *string) error
	LockHistory(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error)
}

// LockHandler handles administrative account lock endpoints
type LockHandler struct {
	service LockoutServiceInterface
}

func NewLockHandler(service LockoutServiceInterface) *LockHandler {
	return &LockHandler{service: service}
}

// LockAccountRequest carries an administrative lock
type LockAccountRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// GetStatus handles GET /admin/locks/{employeeID}
func (h *LockHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	status, err := h.service.IsAccountLocked(r.Context(), employeeID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to check lock status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"employee_id": employeeID,
		"status":      status,
	})
}

// GetHistory handles GET /admin/locks/{employeeID}/history
func (h *LockHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	locks, err := h.service.LockHistory(r.Context(), employeeID, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load lock history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"locks":   locks,
	})
}

// Lock handles POST /admin/locks/{employeeID}
func (h *LockHandler) Lock(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req LockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	lock, err := h.service.Lock(r.Context(), employeeID, nil, req.Reason)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to lock account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Account locked",
		"locked_until": lock.LockedUntil,
	})
}

// Unlock handles POST /admin/locks/{employeeID}/unlock. Idempotent:
// unlocking an already-unlocked account succeeds.
func (h *LockHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var unlockedBy *string
	if claims := auth.GetUserFromContext(r); claims != nil {
		unlockedBy = &claims.UserID
	}

	if err := h.service.Unlock(r.Context(), employeeID, unlockedBy); err != nil {
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account unlocked",
	})
}

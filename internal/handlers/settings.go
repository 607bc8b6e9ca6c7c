package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/internal/services"
	pkghttp "github.com/kasemt/hrcore/pkg/http"
)

// SettingsServiceInterface defines the interface for settings business logic
type SettingsServiceInterface interface {
	GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error)
	GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error)
	GetSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error)
	GetCategories(ctx context.Context) ([]models.SettingCategory, error)
	UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error)
	BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error)
	DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error
	GetEffectiveSetting(ctx context.Context, key string, userID, departmentID *string) (*models.EffectiveSetting, error)
	GetUserSetting(ctx context.Context, userID, key string) (*models.ScopedSetting, error)
	GetAllUserSettings(ctx context.Context, userID string) (map[string]models.SettingValue, error)
	SaveUserSetting(ctx context.Context, userID, key, rawValue string, actorID *string) error
	BatchSaveUserSettings(ctx context.Context, userID string, values map[string]string, actorID *string) error
	DeleteUserSetting(ctx context.Context, userID, key string) error
	GetDepartmentSetting(ctx context.Context, departmentID, key string) (*models.ScopedSetting, error)
	GetAllDepartmentSettings(ctx context.Context, departmentID string) (map[string]models.SettingValue, error)
	SaveDepartmentSetting(ctx context.Context, departmentID, key, rawValue string, actorID *string) error
	GetAuditTrail(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error)
}

// UserDirectory resolves the requester's department for effective lookups
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SettingsHandler handles settings HTTP requests
type SettingsHandler struct {
	service  SettingsServiceInterface
	users    UserDirectory
	ipConfig *pkghttp.IPConfig
}

func NewSettingsHandler(service SettingsServiceInterface, users UserDirectory, ipConfig *pkghttp.IPConfig) *SettingsHandler {
	return &SettingsHandler{
		service:  service,
		users:    users,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// UpdateSettingRequest carries one system setting update
type UpdateSettingRequest struct {
	Value  string  `json:"value" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// BatchUpdateRequest carries a batch of system setting updates
type BatchUpdateRequest struct {
	Settings []models.SettingUpdate `json:"settings" validate:"required,min=1,dive"`
	Reason   *string                `json:"reason,omitempty"`
}

// SaveScopedSettingRequest carries a user or department override value
type SaveScopedSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// BatchSaveScopedRequest carries a set of override values
type BatchSaveScopedRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// GetAll handles GET /settings
func (h *SettingsHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetAllSystemSettings(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// GetCategories handles GET /settings/categories
func (h *SettingsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.GetCategories(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "categories": categories})
}

// GetByCategory handles GET /settings/category/{category}
func (h *SettingsHandler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	settings, err := h.service.GetSettingsByCategory(r.Context(), category)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// GetEffective handles GET /settings/effective/{key}. The key resolves
// against the requester's own user and department scopes.
func (h *SettingsHandler) GetEffective(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	key := chi.URLParam(r, "key")

	var departmentID *string
	if user, err := h.users.GetByID(r.Context(), claims.UserID); err == nil {
		departmentID = user.DepartmentID
	}

	effective, err := h.service.GetEffectiveSetting(r.Context(), key, &claims.UserID, departmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Setting not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to resolve setting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     key,
		"source":  effective.Source,
		"value":   effective.Value,
	})
}

// Update handles PUT /settings/{key}
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	change := h.changeContext(r)
	change.Reason = req.Reason

	updated, err := h.service.UpdateSystemSetting(r.Context(), key, req.Value, change)
	if err != nil {
		h.writeSettingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "setting": updated})
}

// BatchUpdate handles POST /settings/batch. All-or-nothing: a single
// invalid item rejects the whole batch before any write.
func (h *SettingsHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	change := h.changeContext(r)
	change.Reason = req.Reason

	updated, err := h.service.BatchUpdateSystemSettings(r.Context(), req.Settings, change)
	if err != nil {
		h.writeSettingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Settings updated",
		"settings": updated,
	})
}

// Deactivate handles DELETE /settings/{key}. System settings are soft
// deleted only.
func (h *SettingsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.service.DeactivateSystemSetting(r.Context(), key, h.changeContext(r)); err != nil {
		h.writeSettingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Setting deactivated"})
}

// GetAudit handles GET /settings/audit
func (h *SettingsHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SettingAuditFilter{
		SettingScope: q.Get("scope"),
		SettingKey:   q.Get("key"),
		ChangedBy:    q.Get("changed_by"),
	}
	filter.Days, _ = strconv.Atoi(q.Get("days"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	entries, err := h.service.GetAuditTrail(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load audit trail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}

// User settings (the requester's own overrides)

// GetUserSettings handles GET /settings/user
func (h *SettingsHandler) GetUserSettings(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	settings, err := h.service.GetAllUserSettings(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load user settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// SaveUserSetting handles PUT /settings/user/{key}
func (h *SettingsHandler) SaveUserSetting(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	key := chi.URLParam(r, "key")

	var req SaveScopedSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.SaveUserSetting(r.Context(), claims.UserID, key, req.Value, &claims.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Setting saved"})
}

// BatchSaveUserSettings handles POST /settings/user/batch
func (h *SettingsHandler) BatchSaveUserSettings(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req BatchSaveScopedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.BatchSaveUserSettings(r.Context(), claims.UserID, req.Settings, &claims.UserID); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "No settings provided")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Settings saved"})
}

// DeleteUserSetting handles DELETE /settings/user/{key}
func (h *SettingsHandler) DeleteUserSetting(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	key := chi.URLParam(r, "key")

	if err := h.service.DeleteUserSetting(r.Context(), claims.UserID, key); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Setting not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to delete setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Setting removed"})
}

// Department settings (admin and HR)

// GetDepartmentSettings handles GET /settings/department/{departmentID}
func (h *SettingsHandler) GetDepartmentSettings(w http.ResponseWriter, r *http.Request) {
	departmentID := chi.URLParam(r, "departmentID")

	settings, err := h.service.GetAllDepartmentSettings(r.Context(), departmentID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load department settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// SaveDepartmentSetting handles PUT /settings/department/{departmentID}/{key}
func (h *SettingsHandler) SaveDepartmentSetting(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	departmentID := chi.URLParam(r, "departmentID")
	key := chi.URLParam(r, "key")

	var req SaveScopedSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.SaveDepartmentSetting(r.Context(), departmentID, key, req.Value, &claims.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Setting saved"})
}

func (h *SettingsHandler) changeContext(r *http.Request) models.ChangeContext {
	change := models.ChangeContext{}

	if claims := auth.GetUserFromContext(r); claims != nil {
		actorID := claims.UserID
		change.ActorID = &actorID
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	if ip != "" {
		change.IPAddress = &ip
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		change.UserAgent = &ua
	}

	return change
}

func (h *SettingsHandler) writeSettingError(w http.ResponseWriter, err error) {
	var validationErr *services.SettingValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Validation failed",
			"errors":  validationErr.Violations,
		})
	case errors.Is(err, models.ErrSettingNotEditable):
		pkghttp.WriteForbidden(w, "Setting is not editable")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Setting not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Setting already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/internal/services"
	pkghttp "github.com/kasemt/hrcore/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, employeeID, role string) *http.Request {
	claims := &models.TokenClaims{
		Type:       "access",
		UserID:     userID,
		EmployeeID: employeeID,
		Role:       role,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                func(ctx context.Context, identifier, password, ipAddress, userAgent string) (*services.LoginResult, error)
	ChangePasswordFunc       func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
	RefreshFunc              func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	LogoutFunc               func(ctx context.Context, userID, ipAddress, userAgent string)
	PasswordRequirementsFunc func(ctx context.Context) []string
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, identifier, password, ipAddress, userAgent)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword, ipAddress)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, userID, ipAddress, userAgent string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, userID, ipAddress, userAgent)
	}
}

func (m *MockAuthService) PasswordRequirements(ctx context.Context) []string {
	if m.PasswordRequirementsFunc == nil {
		return []string{"At least 8 characters"}
	}
	return m.PasswordRequirementsFunc(ctx)
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	IsAccountLockedFunc func(ctx context.Context, employeeID string) (models.LockStatus, error)
	LockFunc            func(ctx context.Context, employeeID string, userID *string, reason string) (*models.AccountLock, error)
	UnlockFunc          func(ctx context.Context, employeeID string, unlockedBy *string) error
	LockHistoryFunc     func(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error)
}

func (m *MockLockoutService) IsAccountLocked(ctx context.Context, employeeID string) (models.LockStatus, error) {
	if m.IsAccountLockedFunc == nil {
		return models.LockStatus{}, nil
	}
	return m.IsAccountLockedFunc(ctx, employeeID)
}

func (m *MockLockoutService) Lock(ctx context.Context, employeeID string, userID *string, reason string) (*models.AccountLock, error) {
	if m.LockFunc == nil {
		return &models.AccountLock{EmployeeID: employeeID, Reason: reason}, nil
	}
	return m.LockFunc(ctx, employeeID, userID, reason)
}

func (m *MockLockoutService) Unlock(ctx context.Context, employeeID string, unlockedBy *string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, employeeID, unlockedBy)
}

func (m *MockLockoutService) LockHistory(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error) {
	if m.LockHistoryFunc == nil {
		return []*models.AccountLock{}, nil
	}
	return m.LockHistoryFunc(ctx, employeeID, limit)
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

// MockSettingsService implements SettingsServiceInterface for testing
type MockSettingsService struct {
	GetSystemSettingFunc          func(ctx context.Context, key string) (*models.SystemSetting, error)
	GetAllSystemSettingsFunc      func(ctx context.Context) (map[string][]*models.SystemSetting, error)
	GetSettingsByCategoryFunc     func(ctx context.Context, category string) ([]*models.SystemSetting, error)
	GetCategoriesFunc             func(ctx context.Context) ([]models.SettingCategory, error)
	UpdateSystemSettingFunc       func(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error)
	BatchUpdateSystemSettingsFunc func(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error)
	DeactivateSystemSettingFunc   func(ctx context.Context, key string, change models.ChangeContext) error
	GetEffectiveSettingFunc       func(ctx context.Context, key string, userID, departmentID *string) (*models.EffectiveSetting, error)
	GetUserSettingFunc            func(ctx context.Context, userID, key string) (*models.ScopedSetting, error)
	GetAllUserSettingsFunc        func(ctx context.Context, userID string) (map[string]models.SettingValue, error)
	SaveUserSettingFunc           func(ctx context.Context, userID, key, rawValue string, actorID *string) error
	BatchSaveUserSettingsFunc     func(ctx context.Context, userID string, values map[string]string, actorID *string) error
	DeleteUserSettingFunc         func(ctx context.Context, userID, key string) error
	GetDepartmentSettingFunc      func(ctx context.Context, departmentID, key string) (*models.ScopedSetting, error)
	GetAllDepartmentSettingsFunc  func(ctx context.Context, departmentID string) (map[string]models.SettingValue, error)
	SaveDepartmentSettingFunc     func(ctx context.Context, departmentID, key, rawValue string, actorID *string) error
	GetAuditTrailFunc             func(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error)
}

func (m *MockSettingsService) GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	if m.GetSystemSettingFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetSystemSettingFunc(ctx, key)
}

func (m *MockSettingsService) GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error) {
	if m.GetAllSystemSettingsFunc == nil {
		return map[string][]*models.SystemSetting{}, nil
	}
	return m.GetAllSystemSettingsFunc(ctx)
}

func (m *MockSettingsService) GetSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error) {
	if m.GetSettingsByCategoryFunc == nil {
		return []*models.SystemSetting{}, nil
	}
	return m.GetSettingsByCategoryFunc(ctx, category)
}

func (m *MockSettingsService) GetCategories(ctx context.Context) ([]models.SettingCategory, error) {
	if m.GetCategoriesFunc == nil {
		return []models.SettingCategory{}, nil
	}
	return m.GetCategoriesFunc(ctx)
}

func (m *MockSettingsService) UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error) {
	if m.UpdateSystemSettingFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateSystemSettingFunc(ctx, key, newValue, change)
}

func (m *MockSettingsService) BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error) {
	if m.BatchUpdateSystemSettingsFunc == nil {
		return nil, models.ErrBadRequest
	}
	return m.BatchUpdateSystemSettingsFunc(ctx, updates, change)
}

func (m *MockSettingsService) DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error {
	if m.DeactivateSystemSettingFunc == nil {
		return nil
	}
	return m.DeactivateSystemSettingFunc(ctx, key, change)
}

func (m *MockSettingsService) GetEffectiveSetting(ctx context.Context, key string, userID, departmentID *string) (*models.EffectiveSetting, error) {
	if m.GetEffectiveSettingFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetEffectiveSettingFunc(ctx, key, userID, departmentID)
}

func (m *MockSettingsService) GetUserSetting(ctx context.Context, userID, key string) (*models.ScopedSetting, error) {
	if m.GetUserSettingFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserSettingFunc(ctx, userID, key)
}

func (m *MockSettingsService) GetAllUserSettings(ctx context.Context, userID string) (map[string]models.SettingValue, error) {
	if m.GetAllUserSettingsFunc == nil {
		return map[string]models.SettingValue{}, nil
	}
	return m.GetAllUserSettingsFunc(ctx, userID)
}

func (m *MockSettingsService) SaveUserSetting(ctx context.Context, userID, key, rawValue string, actorID *string) error {
	if m.SaveUserSettingFunc == nil {
		return nil
	}
	return m.SaveUserSettingFunc(ctx, userID, key, rawValue, actorID)
}

func (m *MockSettingsService) BatchSaveUserSettings(ctx context.Context, userID string, values map[string]string, actorID *string) error {
	if m.BatchSaveUserSettingsFunc == nil {
		return nil
	}
	return m.BatchSaveUserSettingsFunc(ctx, userID, values, actorID)
}

func (m *MockSettingsService) DeleteUserSetting(ctx context.Context, userID, key string) error {
	if m.DeleteUserSettingFunc == nil {
		return nil
	}
	return m.DeleteUserSettingFunc(ctx, userID, key)
}

func (m *MockSettingsService) GetDepartmentSetting(ctx context.Context, departmentID, key string) (*models.ScopedSetting, error) {
	if m.GetDepartmentSettingFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetDepartmentSettingFunc(ctx, departmentID, key)
}

func (m *MockSettingsService) GetAllDepartmentSettings(ctx context.Context, departmentID string) (map[string]models.SettingValue, error) {
	if m.GetAllDepartmentSettingsFunc == nil {
		return map[string]models.SettingValue{}, nil
	}
	return m.GetAllDepartmentSettingsFunc(ctx, departmentID)
}

func (m *MockSettingsService) SaveDepartmentSetting(ctx context.Context, departmentID, key, rawValue string, actorID *string) error {
	if m.SaveDepartmentSettingFunc == nil {
		return nil
	}
	return m.SaveDepartmentSettingFunc(ctx, departmentID, key, rawValue, actorID)
}

func (m *MockSettingsService) GetAuditTrail(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error) {
	if m.GetAuditTrailFunc == nil {
		return []*models.SettingAuditEntry{}, nil
	}
	return m.GetAuditTrailFunc(ctx, filter)
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/kasemt/hrcore/internal/models"
)

// MockSettingStore implements SettingStore for testing
type MockSettingStore struct {
	GetSystemSettingFunc            func(ctx context.Context, key string) (*models.SystemSetting, error)
	GetAllSystemSettingsFunc        func(ctx context.Context) (map[string][]*models.SystemSetting, error)
	GetSystemSettingsByCategoryFunc func(ctx context.Context, category string) ([]*models.SystemSetting, error)
	GetCategoriesFunc               func(ctx context.Context) ([]models.SettingCategory, error)
	UpdateSystemSettingFunc         func(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error)
	BatchUpdateSystemSettingsFunc   func(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error)
	DeactivateSystemSettingFunc     func(ctx context.Context, key string, change models.ChangeContext) error
	GetScopedSettingFunc            func(ctx context.Context, scope, scopeKey, key string) (*models.ScopedSetting, error)
	GetAllScopedSettingsFunc        func(ctx context.Context, scope, scopeKey string) (map[string]models.SettingValue, error)
	UpsertScopedSettingFunc         func(ctx context.Context, scope, scopeKey, key, rawValue string, actorID *string) error
	BatchSaveScopedSettingsFunc     func(ctx context.Context, scope, scopeKey string, values map[string]string, actorID *string) error
	DeleteScopedSettingFunc         func(ctx context.Context, scope, scopeKey, key string) error
}

func (m *MockSettingStore) GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	if m.GetSystemSettingFunc != nil {
		return m.GetSystemSettingFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockSettingStore) GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error) {
	if m.GetAllSystemSettingsFunc != nil {
		return m.GetAllSystemSettingsFunc(ctx)
	}
	return map[string][]*models.SystemSetting{}, nil
}

func (m *MockSettingStore) GetSystemSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error) {
	if m.GetSystemSettingsByCategoryFunc != nil {
		return m.GetSystemSettingsByCategoryFunc(ctx, category)
	}
	return []*models.SystemSetting{}, nil
}

func (m *MockSettingStore) GetCategories(ctx context.Context) ([]models.SettingCategory, error) {
	if m.GetCategoriesFunc != nil {
		return m.GetCategoriesFunc(ctx)
	}
	return []models.SettingCategory{}, nil
}

func (m *MockSettingStore) UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error) {
	if m.UpdateSystemSettingFunc != nil {
		return m.UpdateSystemSettingFunc(ctx, key, newValue, change)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSettingStore) BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error) {
	if m.BatchUpdateSystemSettingsFunc != nil {
		return m.BatchUpdateSystemSettingsFunc(ctx, updates, change)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSettingStore) DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error {
	if m.DeactivateSystemSettingFunc != nil {
		return m.DeactivateSystemSettingFunc(ctx, key, change)
	}
	return nil
}

func (m *MockSettingStore) GetScopedSetting(ctx context.Context, scope, scopeKey, key string) (*models.ScopedSetting, error) {
	if m.GetScopedSettingFunc != nil {
		return m.GetScopedSettingFunc(ctx, scope, scopeKey, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockSettingStore) GetAllScopedSettings(ctx context.Context, scope, scopeKey string) (map[string]models.SettingValue, error) {
	if m.GetAllScopedSettingsFunc != nil {
		return m.GetAllScopedSettingsFunc(ctx, scope, scopeKey)
	}
	return map[string]models.SettingValue{}, nil
}

func (m *MockSettingStore) UpsertScopedSetting(ctx context.Context, scope, scopeKey, key, rawValue string, actorID *string) error {
	if m.UpsertScopedSettingFunc != nil {
		return m.UpsertScopedSettingFunc(ctx, scope, scopeKey, key, rawValue, actorID)
	}
	return nil
}

func (m *MockSettingStore) BatchSaveScopedSettings(ctx context.Context, scope, scopeKey string, values map[string]string, actorID *string) error {
	if m.BatchSaveScopedSettingsFunc != nil {
		return m.BatchSaveScopedSettingsFunc(ctx, scope, scopeKey, values, actorID)
	}
	return nil
}

func (m *MockSettingStore) DeleteScopedSetting(ctx context.Context, scope, scopeKey, key string) error {
	if m.DeleteScopedSettingFunc != nil {
		return m.DeleteScopedSettingFunc(ctx, scope, scopeKey, key)
	}
	return nil
}

// MockSettingAuditStore implements SettingAuditStore for testing
type MockSettingAuditStore struct {
	ListFunc func(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error)
}

func (m *MockSettingAuditStore) List(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.SettingAuditEntry{}, nil
}

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	InsertFunc              func(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailuresFunc func(ctx context.Context, employeeID string, since time.Time) (int, error)
	ClearFailuresFunc       func(ctx context.Context, employeeID string) error
	DeleteOlderThanFunc     func(ctx context.Context, cutoff time.Time) (int64, error)
	Inserted                []*models.LoginAttempt
}

func (m *MockLoginAttemptStore) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, attempt)
	}
	m.Inserted = append(m.Inserted, attempt)
	return nil
}

func (m *MockLoginAttemptStore) CountRecentFailures(ctx context.Context, employeeID string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, employeeID, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptStore) ClearFailures(ctx context.Context, employeeID string) error {
	if m.ClearFailuresFunc != nil {
		return m.ClearFailuresFunc(ctx, employeeID)
	}
	return nil
}

func (m *MockLoginAttemptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockAccountLockStore implements AccountLockStore for testing
type MockAccountLockStore struct {
	GetActiveLockFunc  func(ctx context.Context, employeeID string) (*models.AccountLock, error)
	CreateIfAbsentFunc func(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error)
	UnlockFunc         func(ctx context.Context, employeeID string, unlockedBy *string) error
	HistoryFunc        func(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error)
}

func (m *MockAccountLockStore) GetActiveLock(ctx context.Context, employeeID string) (*models.AccountLock, error) {
	if m.GetActiveLockFunc != nil {
		return m.GetActiveLockFunc(ctx, employeeID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountLockStore) CreateIfAbsent(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, lock)
	}
	return lock, true, nil
}

func (m *MockAccountLockStore) Unlock(ctx context.Context, employeeID string, unlockedBy *string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, employeeID, unlockedBy)
	}
	return nil
}

func (m *MockAccountLockStore) History(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, employeeID, limit)
	}
	return []*models.AccountLock{}, nil
}

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.User, error)
	GetByEmployeeIDFunc func(ctx context.Context, employeeID string) (*models.User, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.User, error)
	UpdateLastLoginFunc func(ctx context.Context, id, ipAddress string) error
	UpdatePasswordFunc  func(ctx context.Context, id, passwordHash string) error
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmployeeID(ctx context.Context, employeeID string) (*models.User, error) {
	if m.GetByEmployeeIDFunc != nil {
		return m.GetByEmployeeIDFunc(ctx, employeeID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, id, ipAddress string) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, ipAddress)
	}
	return nil
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GeneratePairFunc         func(user *models.User) (*models.TokenPair, error)
	ValidateRefreshTokenFunc func(tokenString string) (*models.TokenClaims, error)
}

func (m *MockTokenIssuer) GeneratePair(user *models.User) (*models.TokenPair, error) {
	if m.GeneratePairFunc != nil {
		return m.GeneratePairFunc(user)
	}
	return &models.TokenPair{
		AccessToken:  "access_" + user.ID,
		RefreshToken: "refresh_" + user.ID,
		ExpiresIn:    900,
	}, nil
}

func (m *MockTokenIssuer) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(tokenString)
	}
	return nil, models.ErrUnauthorized
}

// MockLockNotifier records lock notifications
type MockLockNotifier struct {
	Notified []*models.AccountLock
}

func (m *MockLockNotifier) NotifyAccountLocked(ctx context.Context, lock *models.AccountLock) {
	m.Notified = append(m.Notified, lock)
}

// Test data builders

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewTestUser constructs an active employee account
func NewTestUser(id, employeeID, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:         id,
		EmployeeID: employeeID,
		Email:      email,
		Name:       "Test User",
		Role:       "employee",
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewSecuritySetting builds one SECURITY category setting row
func NewSecuritySetting(key, value string) *models.SystemSetting {
	return &models.SystemSetting{
		ID:           "setting_" + key,
		Category:     SecurityCategory,
		Key:          key,
		Value:        &value,
		Type:         "string",
		Label:        key,
		DefaultValue: value,
		IsEditable:   true,
		IsActive:     true,
	}
}

// securitySource builds a settings source returning the given SECURITY rows
func securitySource(settings ...*models.SystemSetting) *MockSettingStore {
	return &MockSettingStore{
		GetSystemSettingsByCategoryFunc: func(ctx context.Context, category string) ([]*models.SystemSetting, error) {
			return settings, nil
		},
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kasemt/hrcore/internal/models"
)

const settingsSnapshotTTL = 30 * time.Second

// SettingStore is the persistence interface the settings service needs
type SettingStore interface {
	GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error)
	GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error)
	GetSystemSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error)
	GetCategories(ctx context.Context) ([]models.SettingCategory, error)
	UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error)
	BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error)
	DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error
	GetScopedSetting(ctx context.Context, scope, scopeKey, key string) (*models.ScopedSetting, error)
	GetAllScopedSettings(ctx context.Context, scope, scopeKey string) (map[string]models.SettingValue, error)
	UpsertScopedSetting(ctx context.Context, scope, scopeKey, key, rawValue string, actorID *string) error
	BatchSaveScopedSettings(ctx context.Context, scope, scopeKey string, values map[string]string, actorID *string) error
	DeleteScopedSetting(ctx context.Context, scope, scopeKey, key string) error
}

// SettingAuditStore lists the setting change trail
type SettingAuditStore interface {
	List(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error)
}

// SettingValidationError carries the per-key rule violations of a
// rejected update or batch. The whole batch is rejected before any
// write when this is returned.
type SettingValidationError struct {
	Violations map[string][]string
}

func (e *SettingValidationError) Error() string {
	keys := make([]string, 0, len(e.Violations))
	for k := range e.Violations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("setting validation failed for: %s", strings.Join(keys, ", "))
}

func (e *SettingValidationError) Unwrap() error {
	return models.ErrBadRequest
}

// SettingsService owns the flattened system settings snapshot and the
// scope resolution rules. The snapshot is replaced wholesale on refresh
// and cleared synchronously on every successful write.
type SettingsService struct {
	store  SettingStore
	audit  SettingAuditStore
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	snapshot    map[string]string
	refreshedAt time.Time

	hookMu          sync.Mutex
	invalidateHooks []func()
}

func NewSettingsService(store SettingStore, audit SettingAuditStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// OnInvalidate registers a callback run synchronously whenever a system
// setting write invalidates the snapshot. Consumers with their own
// setting caches hook in here so an administrative change is visible to
// them immediately, not after their TTL.
func (s *SettingsService) OnInvalidate(fn func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.invalidateHooks = append(s.invalidateHooks, fn)
}

// Snapshot returns the flattened key to effective-value map of all
// active system settings, refreshed when older than 30 seconds.
func (s *SettingsService) Snapshot(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Sub(s.refreshedAt) < settingsSnapshotTTL {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	grouped, err := s.store.GetAllSystemSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings snapshot: %w", err)
	}

	flat := make(map[string]string)
	for _, settings := range grouped {
		for _, setting := range settings {
			flat[setting.Key] = setting.EffectiveValue()
		}
	}

	s.mu.Lock()
	s.snapshot = flat
	s.refreshedAt = s.now()
	s.mu.Unlock()

	return flat, nil
}

// Get looks up one flattened value from the snapshot
func (s *SettingsService) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	value, ok := snap[key]
	return value, ok, nil
}

// Invalidate drops the snapshot and notifies registered consumers.
// Runs synchronously on the writer's path so a read immediately after a
// successful write can never observe the pre-write value.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.refreshedAt = time.Time{}
	s.mu.Unlock()

	s.hookMu.Lock()
	hooks := make([]func(), len(s.invalidateHooks))
	copy(hooks, s.invalidateHooks)
	s.hookMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (s *SettingsService) GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	return s.store.GetSystemSetting(ctx, key)
}

func (s *SettingsService) GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error) {
	return s.store.GetAllSystemSettings(ctx)
}

func (s *SettingsService) GetSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error) {
	return s.store.GetSystemSettingsByCategory(ctx, category)
}

func (s *SettingsService) GetCategories(ctx context.Context) ([]models.SettingCategory, error) {
	return s.store.GetCategories(ctx)
}

// UpdateSystemSetting validates the new value against the setting's
// rules, applies it with its audit entry in one transaction, then
// invalidates the snapshot.
func (s *SettingsService) UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error) {
	setting, err := s.store.GetSystemSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	if !setting.IsEditable {
		return nil, models.ErrSettingNotEditable
	}

	if result := setting.ValidationRules.Validate(newValue); !result.Valid {
		return nil, &SettingValidationError{Violations: map[string][]string{key: result.Errors}}
	}

	updated, err := s.store.UpdateSystemSetting(ctx, key, newValue, change)
	if err != nil {
		return nil, err
	}

	s.Invalidate()

	s.logger.Info("system setting updated",
		slog.String("key", key),
		slog.Bool("sensitive", updated.IsSensitive))

	return updated, nil
}

// BatchUpdateSystemSettings validates every item before any write
// begins; one invalid item rejects the whole batch with per-key errors.
// The writes then run in a single transaction.
func (s *SettingsService) BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error) {
	if len(updates) == 0 {
		return nil, models.ErrBadRequest
	}

	violations := make(map[string][]string)
	for _, u := range updates {
		setting, err := s.store.GetSystemSetting(ctx, u.Key)
		if errors.Is(err, models.ErrNotFound) {
			violations[u.Key] = []string{"unknown setting"}
			continue
		}
		if err != nil {
			return nil, err
		}
		if !setting.IsEditable {
			violations[u.Key] = []string{"setting is not editable"}
			continue
		}
		if result := setting.ValidationRules.Validate(u.Value); !result.Valid {
			violations[u.Key] = result.Errors
		}
	}
	if len(violations) > 0 {
		return nil, &SettingValidationError{Violations: violations}
	}

	updated, err := s.store.BatchUpdateSystemSettings(ctx, updates, change)
	if err != nil {
		return nil, err
	}

	s.Invalidate()

	s.logger.Info("system settings batch updated", slog.Int("count", len(updated)))

	return updated, nil
}

// DeactivateSystemSetting soft-deletes a setting and invalidates the snapshot
func (s *SettingsService) DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error {
	if err := s.store.DeactivateSystemSetting(ctx, key, change); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// GetEffectiveSetting resolves a key through the scope chain: a user
// override wins over a department override, which wins over the system
// value. Returns ErrNotFound when no scope holds the key.
func (s *SettingsService) GetEffectiveSetting(ctx context.Context, key string, userID, departmentID *string) (*models.EffectiveSetting, error) {
	if userID != nil {
		setting, err := s.store.GetScopedSetting(ctx, models.SettingScopeUser, *userID, key)
		if err == nil {
			return &models.EffectiveSetting{Source: models.SettingScopeUser, Value: setting.Value}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	if departmentID != nil {
		setting, err := s.store.GetScopedSetting(ctx, models.SettingScopeDepartment, *departmentID, key)
		if err == nil {
			return &models.EffectiveSetting{Source: models.SettingScopeDepartment, Value: setting.Value}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	system, err := s.store.GetSystemSetting(ctx, key)
	if err != nil {
		return nil, err
	}

	return &models.EffectiveSetting{
		Source: models.SettingScopeSystem,
		Value:  models.ParseSettingValue(system.EffectiveValue()),
	}, nil
}

// User and department overrides. Unlike system settings these are not
// snapshot-cached; effective reads hit the store directly.

func (s *SettingsService) GetUserSetting(ctx context.Context, userID, key string) (*models.ScopedSetting, error) {
	return s.store.GetScopedSetting(ctx, models.SettingScopeUser, userID, key)
}

func (s *SettingsService) GetAllUserSettings(ctx context.Context, userID string) (map[string]models.SettingValue, error) {
	return s.store.GetAllScopedSettings(ctx, models.SettingScopeUser, userID)
}

func (s *SettingsService) SaveUserSetting(ctx context.Context, userID, key, rawValue string, actorID *string) error {
	return s.store.UpsertScopedSetting(ctx, models.SettingScopeUser, userID, key, rawValue, actorID)
}

func (s *SettingsService) BatchSaveUserSettings(ctx context.Context, userID string, values map[string]string, actorID *string) error {
	if len(values) == 0 {
		return models.ErrBadRequest
	}
	return s.store.BatchSaveScopedSettings(ctx, models.SettingScopeUser, userID, values, actorID)
}

func (s *SettingsService) DeleteUserSetting(ctx context.Context, userID, key string) error {
	return s.store.DeleteScopedSetting(ctx, models.SettingScopeUser, userID, key)
}

func (s *SettingsService) GetDepartmentSetting(ctx context.Context, departmentID, key string) (*models.ScopedSetting, error) {
	return s.store.GetScopedSetting(ctx, models.SettingScopeDepartment, departmentID, key)
}

func (s *SettingsService) GetAllDepartmentSettings(ctx context.Context, departmentID string) (map[string]models.SettingValue, error) {
	return s.store.GetAllScopedSettings(ctx, models.SettingScopeDepartment, departmentID)
}

func (s *SettingsService) SaveDepartmentSetting(ctx context.Context, departmentID, key, rawValue string, actorID *string) error {
	return s.store.UpsertScopedSetting(ctx, models.SettingScopeDepartment, departmentID, key, rawValue, actorID)
}

// GetAuditTrail lists setting changes matching the filter
func (s *SettingsService) GetAuditTrail(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error) {
	return s.audit.List(ctx, filter)
}

package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kasemt/hrcore/internal/database"
	"github.com/kasemt/hrcore/internal/models"
)

// SettingRepository handles system, department and user scoped settings.
// System settings are soft-deactivated only; scoped overrides may be
// deleted outright.
type SettingRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{db: db, pool: db.Pool}
}

const systemSettingColumns = `id, category, setting_key, setting_value, setting_type, setting_label,
	description, default_value, validation_rules, options, is_sensitive, is_editable,
	display_order, is_active, created_at, updated_at`

func scanSystemSettingRow(scanner rowScanner) (*models.SystemSetting, error) {
	var s models.SystemSetting

	err := scanner.Scan(
		&s.ID, &s.Category, &s.Key, &s.Value, &s.Type, &s.Label,
		&s.Description, &s.DefaultValue, &s.ValidationRules, &s.Options,
		&s.IsSensitive, &s.IsEditable, &s.DisplayOrder, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// GetSystemSetting returns a single active system setting by key
func (r *SettingRepository) GetSystemSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	query := `SELECT ` + systemSettingColumns + ` FROM system_settings WHERE setting_key = $1 AND is_active = TRUE`
	return scanSystemSettingRow(r.pool.QueryRow(ctx, query, key))
}

// GetAllSystemSettings returns all active system settings grouped by
// category, each category ordered by display_order then key.
func (r *SettingRepository) GetAllSystemSettings(ctx context.Context) (map[string][]*models.SystemSetting, error) {
	query := `
		SELECT ` + systemSettingColumns + `
		FROM system_settings
		WHERE is_active = TRUE
		ORDER BY category, display_order, setting_key
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query system settings: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]*models.SystemSetting)
	for rows.Next() {
		s, err := scanSystemSettingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan system setting: %w", err)
		}
		grouped[s.Category] = append(grouped[s.Category], s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating system setting rows: %w", err)
	}

	return grouped, nil
}

// GetSystemSettingsByCategory returns one category's active settings in display order
func (r *SettingRepository) GetSystemSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error) {
	query := `
		SELECT ` + systemSettingColumns + `
		FROM system_settings
		WHERE category = $1 AND is_active = TRUE
		ORDER BY display_order, setting_key
	`

	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings by category: %w", err)
	}
	defer rows.Close()

	settings := make([]*models.SystemSetting, 0)
	for rows.Next() {
		s, err := scanSystemSettingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan system setting: %w", err)
		}
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating system setting rows: %w", err)
	}

	return settings, nil
}

// GetCategories lists setting categories with their counts
func (r *SettingRepository) GetCategories(ctx context.Context) ([]models.SettingCategory, error) {
	query := `
		SELECT category, COUNT(*)
		FROM system_settings
		WHERE is_active = TRUE
		GROUP BY category
		ORDER BY category
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query setting categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.SettingCategory, 0)
	for rows.Next() {
		var c models.SettingCategory
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

// UpdateSystemSetting applies a validated value to one setting and writes
// the audit entry in the same transaction. Callers validate against the
// setting's rules before getting here.
func (r *SettingRepository) UpdateSystemSetting(ctx context.Context, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error) {
	var updated *models.SystemSetting

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var innerErr error
		updated, innerErr = updateSystemSettingTx(ctx, tx, key, newValue, change)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// BatchUpdateSystemSettings applies every update inside one transaction:
// a failure on any item rolls back all prior writes in the batch.
func (r *SettingRepository) BatchUpdateSystemSettings(ctx context.Context, updates []models.SettingUpdate, change models.ChangeContext) ([]*models.SystemSetting, error) {
	results := make([]*models.SystemSetting, 0, len(updates))

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, u := range updates {
			itemChange := change
			if u.Reason != nil {
				itemChange.Reason = u.Reason
			}

			updated, err := updateSystemSettingTx(ctx, tx, u.Key, u.Value, itemChange)
			if err != nil {
				return fmt.Errorf("updating %q: %w", u.Key, err)
			}
			results = append(results, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

func updateSystemSettingTx(ctx context.Context, tx pgx.Tx, key, newValue string, change models.ChangeContext) (*models.SystemSetting, error) {
	current, err := scanSystemSettingRow(tx.QueryRow(ctx,
		`SELECT `+systemSettingColumns+` FROM system_settings WHERE setting_key = $1 AND is_active = TRUE FOR UPDATE`,
		key,
	))
	if err != nil {
		return nil, err
	}

	if !current.IsEditable {
		return nil, models.ErrSettingNotEditable
	}

	updated, err := scanSystemSettingRow(tx.QueryRow(ctx, `
		UPDATE system_settings
		SET setting_value = $1, updated_at = CURRENT_TIMESTAMP
		WHERE setting_key = $2
		RETURNING `+systemSettingColumns,
		newValue, key,
	))
	if err != nil {
		return nil, err
	}

	audit := &models.SettingAuditEntry{
		SettingScope: models.SettingScopeSystem,
		SettingKey:   key,
		OldValue:     current.Value,
		NewValue:     &newValue,
		ChangedBy:    change.ActorID,
		IPAddress:    change.IPAddress,
		UserAgent:    change.UserAgent,
		ChangeReason: change.Reason,
	}
	if err := insertSettingAudit(ctx, tx, audit); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeactivateSystemSetting soft-deletes a system setting. The row stays in
// place for history; reads filter on is_active.
func (r *SettingRepository) DeactivateSystemSetting(ctx context.Context, key string, change models.ChangeContext) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE system_settings
			SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
			WHERE setting_key = $1 AND is_active = TRUE
		`, key)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		deactivated := "deactivated"
		return insertSettingAudit(ctx, tx, &models.SettingAuditEntry{
			SettingScope: models.SettingScopeSystem,
			SettingKey:   key,
			NewValue:     &deactivated,
			ChangedBy:    change.ActorID,
			IPAddress:    change.IPAddress,
			UserAgent:    change.UserAgent,
			ChangeReason: change.Reason,
		})
	})
}

// Scoped settings (user and department overrides)

const scopedSettingColumns = `id, scope, scope_key, setting_key, setting_value, created_by, updated_by, created_at, updated_at`

func scanScopedSettingRow(scanner rowScanner) (*models.ScopedSetting, error) {
	var s models.ScopedSetting
	var raw string

	err := scanner.Scan(
		&s.ID, &s.Scope, &s.ScopeKey, &s.Key, &raw,
		&s.CreatedBy, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	s.Value = models.ParseSettingValue(raw)
	return &s, nil
}

// GetScopedSetting returns one user or department override, or ErrNotFound
func (r *SettingRepository) GetScopedSetting(ctx context.Context, scope, scopeKey, key string) (*models.ScopedSetting, error) {
	query := `
		SELECT ` + scopedSettingColumns + `
		FROM scoped_settings
		WHERE scope = $1 AND scope_key = $2 AND setting_key = $3
	`

	return scanScopedSettingRow(r.pool.QueryRow(ctx, query, scope, scopeKey, key))
}

// GetAllScopedSettings returns every override for one scope owner as a
// key to value map.
func (r *SettingRepository) GetAllScopedSettings(ctx context.Context, scope, scopeKey string) (map[string]models.SettingValue, error) {
	query := `
		SELECT setting_key, setting_value
		FROM scoped_settings
		WHERE scope = $1 AND scope_key = $2
		ORDER BY setting_key
	`

	rows, err := r.pool.Query(ctx, query, scope, scopeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query scoped settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]models.SettingValue)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan scoped setting: %w", err)
		}
		settings[key] = models.ParseSettingValue(raw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scoped setting rows: %w", err)
	}

	return settings, nil
}

// UpsertScopedSetting creates or replaces one override
func (r *SettingRepository) UpsertScopedSetting(ctx context.Context, scope, scopeKey, key, rawValue string, actorID *string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return upsertScopedSettingTx(ctx, tx, scope, scopeKey, key, rawValue, actorID)
	})
}

// BatchSaveScopedSettings upserts a set of overrides in one transaction
func (r *SettingRepository) BatchSaveScopedSettings(ctx context.Context, scope, scopeKey string, values map[string]string, actorID *string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for key, raw := range values {
			if err := upsertScopedSettingTx(ctx, tx, scope, scopeKey, key, raw, actorID); err != nil {
				return fmt.Errorf("saving %q: %w", key, err)
			}
		}
		return nil
	})
}

func upsertScopedSettingTx(ctx context.Context, tx pgx.Tx, scope, scopeKey, key, rawValue string, actorID *string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO scoped_settings (id, scope, scope_key, setting_key, setting_value, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (scope, scope_key, setting_key)
		DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_by = EXCLUDED.updated_by, updated_at = CURRENT_TIMESTAMP
	`, uuid.New().String(), scope, scopeKey, key, rawValue, actorID)

	return database.MapPostgresError(err)
}

// DeleteScopedSetting removes an override. Unlike system settings these
// are deleted outright.
func (r *SettingRepository) DeleteScopedSetting(ctx context.Context, scope, scopeKey, key string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM scoped_settings WHERE scope = $1 AND scope_key = $2 AND setting_key = $3`,
		scope, scopeKey, key,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

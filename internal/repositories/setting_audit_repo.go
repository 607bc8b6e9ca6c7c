package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kasemt/hrcore/internal/database"
	"github.com/kasemt/hrcore/internal/models"
)

// SettingAuditRepository reads and prunes the setting change trail.
// Writes happen through insertSettingAudit inside the same transaction
// as the setting change itself.
type SettingAuditRepository struct {
	pool *pgxpool.Pool
}

func NewSettingAuditRepository(db *database.DB) *SettingAuditRepository {
	return &SettingAuditRepository{pool: db.Pool}
}

// execer is satisfied by both pgx.Tx and *pgxpool.Pool
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ execer = (pgx.Tx)(nil)

// insertSettingAudit appends one audit row. Runs on whatever transaction
// the setting change runs on so the trail never drifts from the data.
func insertSettingAudit(ctx context.Context, q execer, entry *models.SettingAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := q.Exec(ctx, `
		INSERT INTO setting_audit (id, setting_scope, setting_key, old_value, new_value, changed_by, ip_address, user_agent, change_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID, entry.SettingScope, entry.SettingKey,
		entry.OldValue, entry.NewValue, entry.ChangedBy,
		entry.IPAddress, entry.UserAgent, entry.ChangeReason,
	)

	return database.MapPostgresError(err)
}

// List returns audit entries matching the filter, newest first
func (r *SettingAuditRepository) List(ctx context.Context, filter models.SettingAuditFilter) ([]*models.SettingAuditEntry, error) {
	builder := sq.Select(
		"id", "setting_scope", "setting_key", "old_value", "new_value",
		"changed_by", "ip_address", "user_agent", "change_reason", "created_at",
	).
		From("setting_audit").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.SettingScope != "" {
		builder = builder.Where(sq.Eq{"setting_scope": filter.SettingScope})
	}
	if filter.SettingKey != "" {
		builder = builder.Where(sq.Eq{"setting_key": filter.SettingKey})
	}
	if filter.ChangedBy != "" {
		builder = builder.Where(sq.Eq{"changed_by": filter.ChangedBy})
	}
	if filter.Days > 0 {
		builder = builder.Where(sq.GtOrEq{"created_at": time.Now().AddDate(0, 0, -filter.Days)})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query setting audit: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.SettingAuditEntry, 0)
	for rows.Next() {
		var e models.SettingAuditEntry
		err := rows.Scan(
			&e.ID, &e.SettingScope, &e.SettingKey, &e.OldValue, &e.NewValue,
			&e.ChangedBy, &e.IPAddress, &e.UserAgent, &e.ChangeReason, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan prunes audit rows past the retention cutoff
func (r *SettingAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM setting_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

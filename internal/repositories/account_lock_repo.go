package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kasemt/hrcore/internal/database"
	"github.com/kasemt/hrcore/internal/models"
)

// AccountLockRepository manages lockout rows. The schema carries a partial
// unique index on employee_id for open locks (unlocked_at IS NULL), which
// is what serializes concurrent lock creation for the same identifier.
type AccountLockRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountLockRepository(db *database.DB) *AccountLockRepository {
	return &AccountLockRepository{db: db, pool: db.Pool}
}

const lockColumns = `id, employee_id, user_id, locked_at, locked_until, reason, unlocked_at, unlocked_by`

func scanLockRow(scanner rowScanner) (*models.AccountLock, error) {
	var lock models.AccountLock

	err := scanner.Scan(
		&lock.ID, &lock.EmployeeID, &lock.UserID,
		&lock.LockedAt, &lock.LockedUntil, &lock.Reason,
		&lock.UnlockedAt, &lock.UnlockedBy,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &lock, nil
}

// GetActiveLock returns the active lock for an identifier, or ErrNotFound.
// A lock is active when it has no recorded unlock and a future locked_until.
func (r *AccountLockRepository) GetActiveLock(ctx context.Context, employeeID string) (*models.AccountLock, error) {
	query := `
		SELECT ` + lockColumns + `
		FROM account_locks
		WHERE employee_id = $1 AND unlocked_at IS NULL AND locked_until > CURRENT_TIMESTAMP
		ORDER BY locked_at DESC
		LIMIT 1
	`

	return scanLockRow(r.pool.QueryRow(ctx, query, employeeID))
}

// CreateIfAbsent inserts a lock unless the identifier already has an
// active one. Expired-but-open locks are closed first so the partial
// unique index only guards genuinely active rows. Returns the winning
// lock and whether this call created it; two concurrent threshold
// crossings resolve to a single row, the loser observing the winner's.
func (r *AccountLockRepository) CreateIfAbsent(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error) {
	if lock.ID == "" {
		lock.ID = uuid.New().String()
	}

	var created *models.AccountLock

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// Close open locks whose window has already elapsed; they are
		// logically unlocked but still occupy the unique index slot.
		_, err := tx.Exec(ctx, `
			UPDATE account_locks
			SET unlocked_at = locked_until
			WHERE employee_id = $1 AND unlocked_at IS NULL AND locked_until <= CURRENT_TIMESTAMP
		`, lock.EmployeeID)
		if err != nil {
			return database.MapPostgresError(err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO account_locks (id, employee_id, user_id, locked_at, locked_until, reason)
			SELECT $1, $2, $3, CURRENT_TIMESTAMP, $4, $5
			WHERE NOT EXISTS (
				SELECT 1 FROM account_locks
				WHERE employee_id = $2 AND unlocked_at IS NULL AND locked_until > CURRENT_TIMESTAMP
			)
			RETURNING ` + lockColumns,
			lock.ID, lock.EmployeeID, lock.UserID, lock.LockedUntil, lock.Reason,
		)

		created, err = scanLockRow(row)
		return err
	})

	if err == nil {
		return created, true, nil
	}

	// Lost the race or an active lock already existed: surface that lock.
	// ErrNotFound means the guarded insert produced no row; ErrConflict
	// means two transactions hit the partial unique index at once.
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConflict) {
		existing, getErr := r.GetActiveLock(ctx, lock.EmployeeID)
		if getErr != nil {
			return nil, false, fmt.Errorf("lock exists but could not be read: %w", getErr)
		}
		return existing, false, nil
	}

	return nil, false, err
}

// Unlock closes any open lock for the identifier. Idempotent: unlocking
// an already-unlocked identifier succeeds without touching history.
func (r *AccountLockRepository) Unlock(ctx context.Context, employeeID string, unlockedBy *string) error {
	query := `
		UPDATE account_locks
		SET unlocked_at = CURRENT_TIMESTAMP, unlocked_by = $1
		WHERE employee_id = $2 AND unlocked_at IS NULL
	`

	_, err := r.pool.Exec(ctx, query, unlockedBy, employeeID)
	return database.MapPostgresError(err)
}

// History lists past locks for an identifier, newest first
func (r *AccountLockRepository) History(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error) {
	query := `
		SELECT ` + lockColumns + `
		FROM account_locks
		WHERE employee_id = $1
		ORDER BY locked_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lock history: %w", err)
	}
	defer rows.Close()

	locks := make([]*models.AccountLock, 0)
	for rows.Next() {
		lock, err := scanLockRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		locks = append(locks, lock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lock rows: %w", err)
	}

	return locks, nil
}

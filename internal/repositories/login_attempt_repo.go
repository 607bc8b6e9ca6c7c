package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kasemt/hrcore/internal/database"
	"github.com/kasemt/hrcore/internal/models"
)

// LoginAttemptRepository handles the append-only login attempt trail
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Insert appends a login attempt row
func (r *LoginAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, employee_id, user_id, ip_address, user_agent, attempt_time, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.EmployeeID,
		attempt.UserID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
	)

	return database.MapPostgresError(err)
}

// CountRecentFailures returns the number of failed attempts for an
// identifier since the given time.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, employeeID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE employee_id = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, employeeID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ClearFailures discards failed attempts for an identifier so the next
// failure streak starts fresh. Called after a successful login.
func (r *LoginAttemptRepository) ClearFailures(ctx context.Context, employeeID string) error {
	query := `DELETE FROM login_attempts WHERE employee_id = $1 AND success = false`
	_, err := r.pool.Exec(ctx, query, employeeID)
	return database.MapPostgresError(err)
}

// DeleteOlderThan removes attempt rows older than the cutoff. Lock rows
// live in their own table and are untouched.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

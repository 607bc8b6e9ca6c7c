package models

import "time"

// LoginAttempt is a single, append-only record of a login attempt.
// Rows are never updated; they exist as evidence for failure-rate
// computation and are purged by the retention job.
type LoginAttempt struct {
	ID            string    `db:"id"`
	EmployeeID    string    `db:"employee_id"`
	UserID        *string   `db:"user_id"`
	IPAddress     string    `db:"ip_address"`
	UserAgent     string    `db:"user_agent"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
}

package models

import "time"

// AccountLock records one lockout of an identifier. A lock is "active"
// while unlocked_at is unset and locked_until is in the future; it is
// closed either by time passing (read-time check, no write) or by an
// explicit administrative unlock.
type AccountLock struct {
	ID          string     `json:"id" db:"id"`
	EmployeeID  string     `json:"employee_id" db:"employee_id"`
	UserID      *string    `json:"user_id,omitempty" db:"user_id"`
	LockedAt    time.Time  `json:"locked_at" db:"locked_at"`
	LockedUntil time.Time  `json:"locked_until" db:"locked_until"`
	Reason      string     `json:"reason" db:"reason"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty" db:"unlocked_at"`
	UnlockedBy  *string    `json:"unlocked_by,omitempty" db:"unlocked_by"`
}

// LockStatus reports whether an identifier currently has an active lock
type LockStatus struct {
	Locked           bool       `json:"locked"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	MinutesRemaining int        `json:"minutes_remaining,omitempty"`
}

// LockCheckResult is the outcome of evaluating an identifier's recent
// failure streak against the configured threshold.
type LockCheckResult struct {
	ShouldLock        bool `json:"should_lock"`
	FailedAttempts    int  `json:"failed_attempts"`
	MaxAttempts       int  `json:"max_attempts"`
	LockDuration      int  `json:"lock_duration,omitempty"`      // minutes, set when ShouldLock
	RemainingAttempts int  `json:"remaining_attempts,omitempty"` // set when !ShouldLock
}

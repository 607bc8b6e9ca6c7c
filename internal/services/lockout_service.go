package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kasemt/hrcore/internal/models"
)

// LoginAttemptStore is the persistence interface for the attempt trail
type LoginAttemptStore interface {
	Insert(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, employeeID string, since time.Time) (int, error)
	ClearFailures(ctx context.Context, employeeID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AccountLockStore is the persistence interface for lock rows
type AccountLockStore interface {
	GetActiveLock(ctx context.Context, employeeID string) (*models.AccountLock, error)
	CreateIfAbsent(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error)
	Unlock(ctx context.Context, employeeID string, unlockedBy *string) error
	History(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error)
}

// LockNotifier is told when a new lock is created. Advisory: failures
// are the notifier's problem, not the login path's.
type LockNotifier interface {
	NotifyAccountLocked(ctx context.Context, lock *models.AccountLock)
}

// LockoutService tracks login attempts and drives the lock state
// machine. It owns its own security settings cache for the threshold
// and window configuration.
type LockoutService struct {
	attempts LoginAttemptStore
	locks    AccountLockStore
	settings *securitySettingsCache
	notifier LockNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewLockoutService(attempts LoginAttemptStore, locks AccountLockStore, source securitySettingsSource, notifier LockNotifier, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		attempts: attempts,
		locks:    locks,
		settings: newSecuritySettingsCache(source, logger),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// InvalidateSettings drops the cached lockout settings
func (s *LockoutService) InvalidateSettings() {
	s.settings.Invalidate()
}

// RecordAttempt appends an attempt row. It never fails the caller: a
// broken audit trail must not block a login, and must not falsely
// permit one either, so errors are logged and swallowed.
func (s *LockoutService) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("employee_id", attempt.EmployeeID),
			slog.Bool("success", attempt.Success),
			slog.Any("error", err))
	}
}

// RecentFailedAttempts counts failures within the trailing window
func (s *LockoutService) RecentFailedAttempts(ctx context.Context, employeeID string, windowMinutes int) (int, error) {
	since := s.now().Add(-time.Duration(windowMinutes) * time.Minute)
	return s.attempts.CountRecentFailures(ctx, employeeID, since)
}

// IsAccountLocked reports whether the identifier currently has an
// active lock. Expiry is a read-time check; no row is written when a
// lock lapses.
func (s *LockoutService) IsAccountLocked(ctx context.Context, employeeID string) (models.LockStatus, error) {
	lock, err := s.locks.GetActiveLock(ctx, employeeID)
	if errors.Is(err, models.ErrNotFound) {
		return models.LockStatus{Locked: false}, nil
	}
	if err != nil {
		return models.LockStatus{}, err
	}

	remaining := lock.LockedUntil.Sub(s.now())
	return models.LockStatus{
		Locked:           true,
		LockedUntil:      &lock.LockedUntil,
		Reason:           lock.Reason,
		MinutesRemaining: int(math.Ceil(remaining.Minutes())),
	}, nil
}

// CheckAndLock evaluates the identifier's recent failure streak against
// the configured threshold and creates a lock when it is reached. Call
// it after recording the current failure so that failure counts toward
// the threshold. The lookback window and the lock length share the
// lockout_duration setting.
func (s *LockoutService) CheckAndLock(ctx context.Context, employeeID string, userID *string) (models.LockCheckResult, error) {
	cfg := s.settings.Get(ctx)

	since := s.now().Add(-time.Duration(cfg.LockoutDurationMinutes) * time.Minute)
	failures, err := s.attempts.CountRecentFailures(ctx, employeeID, since)
	if err != nil {
		return models.LockCheckResult{}, fmt.Errorf("failed to count recent failures: %w", err)
	}

	if failures < cfg.MaxLoginAttempts {
		return models.LockCheckResult{
			ShouldLock:        false,
			FailedAttempts:    failures,
			MaxAttempts:       cfg.MaxLoginAttempts,
			RemainingAttempts: cfg.MaxLoginAttempts - failures,
		}, nil
	}

	lock := &models.AccountLock{
		EmployeeID:  employeeID,
		UserID:      userID,
		LockedUntil: s.now().Add(time.Duration(cfg.LockoutDurationMinutes) * time.Minute),
		Reason:      fmt.Sprintf("Account locked after %d failed login attempts", cfg.MaxLoginAttempts),
	}

	winner, created, err := s.locks.CreateIfAbsent(ctx, lock)
	if err != nil {
		return models.LockCheckResult{}, fmt.Errorf("failed to create account lock: %w", err)
	}

	if created {
		s.logger.Warn("account locked",
			slog.String("employee_id", employeeID),
			slog.Int("failed_attempts", failures),
			slog.Time("locked_until", winner.LockedUntil))
		if s.notifier != nil {
			s.notifier.NotifyAccountLocked(ctx, winner)
		}
	}

	return models.LockCheckResult{
		ShouldLock:     true,
		FailedAttempts: failures,
		MaxAttempts:    cfg.MaxLoginAttempts,
		LockDuration:   cfg.LockoutDurationMinutes,
	}, nil
}

// Lock creates an administrative lock with an explicit reason
func (s *LockoutService) Lock(ctx context.Context, employeeID string, userID *string, reason string) (*models.AccountLock, error) {
	cfg := s.settings.Get(ctx)

	lock := &models.AccountLock{
		EmployeeID:  employeeID,
		UserID:      userID,
		LockedUntil: s.now().Add(time.Duration(cfg.LockoutDurationMinutes) * time.Minute),
		Reason:      reason,
	}

	winner, _, err := s.locks.CreateIfAbsent(ctx, lock)
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// Unlock closes the identifier's active lock. Idempotent: unlocking an
// already-unlocked identifier succeeds without writing anything new.
func (s *LockoutService) Unlock(ctx context.Context, employeeID string, unlockedBy *string) error {
	if err := s.locks.Unlock(ctx, employeeID, unlockedBy); err != nil {
		return err
	}

	s.logger.Info("account unlocked", slog.String("employee_id", employeeID))
	return nil
}

// ClearFailedAttempts discards the identifier's failure streak after a
// successful login. Advisory like RecordAttempt.
func (s *LockoutService) ClearFailedAttempts(ctx context.Context, employeeID string) {
	if err := s.attempts.ClearFailures(ctx, employeeID); err != nil {
		s.logger.Error("failed to clear login failures",
			slog.String("employee_id", employeeID),
			slog.Any("error", err))
	}
}

// LockHistory lists past locks for an identifier
func (s *LockoutService) LockHistory(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.locks.History(ctx, employeeID, limit)
}

// CleanupOldAttempts purges attempt rows older than daysOld days. Lock
// rows are a separate table and keep their full history.
func (s *LockoutService) CleanupOldAttempts(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		return 0, models.ErrBadRequest
	}

	cutoff := s.now().AddDate(0, 0, -daysOld)
	deleted, err := s.attempts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("purged old login attempts",
			slog.Int64("deleted", deleted),
			slog.Int("days_old", daysOld))
	}
	return deleted, nil
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasemt/hrcore/internal/models"
)

func newTestLockoutService(attempts *MockLoginAttemptStore, locks *MockAccountLockStore, notifier LockNotifier) *LockoutService {
	return NewLockoutService(attempts, locks, securitySource(), notifier, testLogger())
}

func TestLockoutService_CheckAndLock(t *testing.T) {
	ctx := context.Background()

	t.Run("counts down remaining attempts before the threshold", func(t *testing.T) {
		failures := 0
		attempts := &MockLoginAttemptStore{
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				return failures, nil
			},
		}
		svc := newTestLockoutService(attempts, &MockAccountLockStore{}, nil)

		for _, tc := range []struct {
			failures  int
			remaining int
		}{
			{1, 4}, {2, 3}, {3, 2}, {4, 1},
		} {
			failures = tc.failures
			result, err := svc.CheckAndLock(ctx, "E001", nil)
			require.NoError(t, err)
			assert.False(t, result.ShouldLock)
			assert.Equal(t, tc.failures, result.FailedAttempts)
			assert.Equal(t, 5, result.MaxAttempts)
			assert.Equal(t, tc.remaining, result.RemainingAttempts)
		}
	})

	t.Run("locks at the threshold and notifies", func(t *testing.T) {
		attempts := &MockLoginAttemptStore{
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				return 5, nil
			},
		}
		var created *models.AccountLock
		locks := &MockAccountLockStore{
			CreateIfAbsentFunc: func(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error) {
				created = lock
				return lock, true, nil
			},
		}
		notifier := &MockLockNotifier{}
		svc := newTestLockoutService(attempts, locks, notifier)

		result, err := svc.CheckAndLock(ctx, "E001", nil)
		require.NoError(t, err)
		assert.True(t, result.ShouldLock)
		assert.Equal(t, 5, result.FailedAttempts)
		assert.Equal(t, 15, result.LockDuration)

		require.NotNil(t, created)
		assert.Equal(t, "Account locked after 5 failed login attempts", created.Reason)
		assert.Len(t, notifier.Notified, 1)
	})

	t.Run("losing the creation race still reports locked without notifying", func(t *testing.T) {
		attempts := &MockLoginAttemptStore{
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				return 6, nil
			},
		}
		winner := &models.AccountLock{EmployeeID: "E001", Reason: "existing"}
		locks := &MockAccountLockStore{
			CreateIfAbsentFunc: func(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error) {
				return winner, false, nil
			},
		}
		notifier := &MockLockNotifier{}
		svc := newTestLockoutService(attempts, locks, notifier)

		result, err := svc.CheckAndLock(ctx, "E001", nil)
		require.NoError(t, err)
		assert.True(t, result.ShouldLock)
		assert.Empty(t, notifier.Notified)
	})

	t.Run("window and duration come from lockout_duration", func(t *testing.T) {
		var capturedSince time.Time
		attempts := &MockLoginAttemptStore{
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				capturedSince = since
				return 0, nil
			},
		}
		svc := NewLockoutService(attempts, &MockAccountLockStore{},
			securitySource(NewSecuritySetting(models.SettingLockoutDuration, "45")),
			nil, testLogger())

		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return base }

		_, err := svc.CheckAndLock(ctx, "E001", nil)
		require.NoError(t, err)
		assert.Equal(t, base.Add(-45*time.Minute), capturedSince)
	})
}

func TestLockoutService_IsAccountLocked(t *testing.T) {
	ctx := context.Background()

	t.Run("no active lock", func(t *testing.T) {
		svc := newTestLockoutService(&MockLoginAttemptStore{}, &MockAccountLockStore{}, nil)

		status, err := svc.IsAccountLocked(ctx, "E001")
		require.NoError(t, err)
		assert.False(t, status.Locked)
	})

	t.Run("remaining minutes round up", func(t *testing.T) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		until := base.Add(14*time.Minute + 10*time.Second)
		locks := &MockAccountLockStore{
			GetActiveLockFunc: func(ctx context.Context, employeeID string) (*models.AccountLock, error) {
				return &models.AccountLock{
					EmployeeID:  employeeID,
					LockedUntil: until,
					Reason:      "too many failures",
				}, nil
			},
		}
		svc := newTestLockoutService(&MockLoginAttemptStore{}, locks, nil)
		svc.now = func() time.Time { return base }

		status, err := svc.IsAccountLocked(ctx, "E001")
		require.NoError(t, err)
		assert.True(t, status.Locked)
		assert.Equal(t, 15, status.MinutesRemaining)
		assert.Equal(t, "too many failures", status.Reason)
		require.NotNil(t, status.LockedUntil)
		assert.Equal(t, until, *status.LockedUntil)
	})
}

func TestLockoutService_Advisory(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordAttempt swallows store failures", func(t *testing.T) {
		attempts := &MockLoginAttemptStore{
			InsertFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
				return models.ErrInternalServer
			},
		}
		svc := newTestLockoutService(attempts, &MockAccountLockStore{}, nil)

		svc.RecordAttempt(ctx, &models.LoginAttempt{EmployeeID: "E001", Success: false})
	})

	t.Run("ClearFailedAttempts swallows store failures", func(t *testing.T) {
		attempts := &MockLoginAttemptStore{
			ClearFailuresFunc: func(ctx context.Context, employeeID string) error {
				return models.ErrInternalServer
			},
		}
		svc := newTestLockoutService(attempts, &MockAccountLockStore{}, nil)

		svc.ClearFailedAttempts(ctx, "E001")
	})
}

func TestLockoutService_CleanupOldAttempts(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive retention", func(t *testing.T) {
		svc := newTestLockoutService(&MockLoginAttemptStore{}, &MockAccountLockStore{}, nil)

		_, err := svc.CleanupOldAttempts(ctx, 0)
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("purges with a day-based cutoff", func(t *testing.T) {
		var capturedCutoff time.Time
		attempts := &MockLoginAttemptStore{
			DeleteOlderThanFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
				capturedCutoff = cutoff
				return 12, nil
			},
		}
		svc := newTestLockoutService(attempts, &MockAccountLockStore{}, nil)

		base := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return base }

		deleted, err := svc.CleanupOldAttempts(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(12), deleted)
		assert.Equal(t, base.AddDate(0, 0, -30), capturedCutoff)
	})
}

func TestLockoutService_LockHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a default limit", func(t *testing.T) {
		var capturedLimit int
		locks := &MockAccountLockStore{
			HistoryFunc: func(ctx context.Context, employeeID string, limit int) ([]*models.AccountLock, error) {
				capturedLimit = limit
				return nil, nil
			},
		}
		svc := newTestLockoutService(&MockLoginAttemptStore{}, locks, nil)

		_, err := svc.LockHistory(ctx, "E001", 0)
		require.NoError(t, err)
		assert.Equal(t, 20, capturedLimit)
	})
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasemt/hrcore/internal/models"
)

func TestPasswordExpiryService_Evaluate(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	newSvc := func(settings ...*models.SystemSetting) *PasswordExpiryService {
		svc := NewPasswordExpiryService(&MockUserStore{}, securitySource(settings...), testLogger())
		svc.now = func() time.Time { return base }
		return svc
	}

	userChangedDaysAgo := func(days int) *models.User {
		user := NewTestUser("u1", "E001", "e001@example.com")
		changed := base.AddDate(0, 0, -days)
		user.PasswordChangedAt = &changed
		return user
	}

	t.Run("fresh password is not expired", func(t *testing.T) {
		status := newSvc().Evaluate(ctx, userChangedDaysAgo(10))
		assert.False(t, status.Expired)
		assert.Equal(t, 10, status.DaysOld)
		assert.Equal(t, 90, status.MaxDays)
		assert.Equal(t, 80, status.DaysRemaining)
	})

	t.Run("expires at exactly max days", func(t *testing.T) {
		status := newSvc().Evaluate(ctx, userChangedDaysAgo(90))
		assert.True(t, status.Expired)
		assert.Equal(t, 90, status.DaysOld)
		assert.Zero(t, status.DaysRemaining)
	})

	t.Run("partial days round down", func(t *testing.T) {
		user := NewTestUser("u1", "E001", "e001@example.com")
		changed := base.Add(-(89*24 + 23) * time.Hour)
		user.PasswordChangedAt = &changed

		status := newSvc().Evaluate(ctx, user)
		assert.False(t, status.Expired)
		assert.Equal(t, 89, status.DaysOld)
		assert.Equal(t, 1, status.DaysRemaining)
	})

	t.Run("zero max days disables expiry", func(t *testing.T) {
		svc := newSvc(NewSecuritySetting(models.SettingForcePasswordChange, "0"))

		status := svc.Evaluate(ctx, userChangedDaysAgo(5000))
		assert.False(t, status.Expired)
		assert.Zero(t, status.MaxDays)
	})

	t.Run("falls back to account creation time", func(t *testing.T) {
		user := NewTestUser("u1", "E001", "e001@example.com")
		user.PasswordChangedAt = nil
		user.CreatedAt = base.AddDate(0, 0, -100)

		status := newSvc().Evaluate(ctx, user)
		assert.True(t, status.Expired)
		assert.Equal(t, 100, status.DaysOld)
	})
}

func TestPasswordExpiryService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("propagates a missing user", func(t *testing.T) {
		svc := NewPasswordExpiryService(&MockUserStore{}, securitySource(), testLogger())

		_, err := svc.Check(ctx, "missing")
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("evaluates a found user", func(t *testing.T) {
		base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		changed := base.AddDate(0, 0, -91)
		user := NewTestUser("u1", "E001", "e001@example.com")
		user.PasswordChangedAt = &changed

		users := &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
		}
		svc := NewPasswordExpiryService(users, securitySource(), testLogger())
		svc.now = func() time.Time { return base }

		status, err := svc.Check(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, status.Expired)
	})
}

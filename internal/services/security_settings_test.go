package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasemt/hrcore/internal/models"
)

func TestSecuritySettingsCache(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves configured values over defaults", func(t *testing.T) {
		source := securitySource(
			NewSecuritySetting(models.SettingMaxLoginAttempts, "3"),
			NewSecuritySetting(models.SettingLockoutDuration, "30"),
			NewSecuritySetting(models.SettingPasswordRequireSpecial, "true"),
		)
		cache := newSecuritySettingsCache(source, testLogger())

		cfg := cache.Get(ctx)
		assert.Equal(t, 3, cfg.MaxLoginAttempts)
		assert.Equal(t, 30, cfg.LockoutDurationMinutes)
		assert.True(t, cfg.PasswordRequireSpecial)
		// untouched keys keep their fallbacks
		assert.Equal(t, 8, cfg.PasswordMinLength)
		assert.Equal(t, 90, cfg.ForcePasswordChangeDays)
	})

	t.Run("caches within the TTL", func(t *testing.T) {
		calls := 0
		source := &MockSettingStore{
			GetSystemSettingsByCategoryFunc: func(ctx context.Context, category string) ([]*models.SystemSetting, error) {
				calls++
				return []*models.SystemSetting{NewSecuritySetting(models.SettingMaxLoginAttempts, "3")}, nil
			},
		}
		cache := newSecuritySettingsCache(source, testLogger())

		base := time.Now()
		cache.now = func() time.Time { return base }

		cache.Get(ctx)
		cache.Get(ctx)
		assert.Equal(t, 1, calls)

		cache.now = func() time.Time { return base.Add(securitySettingsTTL + time.Second) }
		cache.Get(ctx)
		assert.Equal(t, 2, calls)
	})

	t.Run("invalidate forces a refresh", func(t *testing.T) {
		calls := 0
		source := &MockSettingStore{
			GetSystemSettingsByCategoryFunc: func(ctx context.Context, category string) ([]*models.SystemSetting, error) {
				calls++
				return []*models.SystemSetting{}, nil
			},
		}
		cache := newSecuritySettingsCache(source, testLogger())

		cache.Get(ctx)
		cache.Get(ctx)
		assert.Equal(t, 1, calls)

		cache.Invalidate()
		cache.Get(ctx)
		assert.Equal(t, 2, calls)
	})

	t.Run("store failure falls back to defaults", func(t *testing.T) {
		source := &MockSettingStore{
			GetSystemSettingsByCategoryFunc: func(ctx context.Context, category string) ([]*models.SystemSetting, error) {
				return nil, models.ErrInternalServer
			},
		}
		cache := newSecuritySettingsCache(source, testLogger())

		cfg := cache.Get(ctx)
		assert.Equal(t, DefaultSecuritySettings(), cfg)
	})

	t.Run("store failure keeps the previous value when one exists", func(t *testing.T) {
		fail := false
		source := &MockSettingStore{
			GetSystemSettingsByCategoryFunc: func(ctx context.Context, category string) ([]*models.SystemSetting, error) {
				if fail {
					return nil, models.ErrInternalServer
				}
				return []*models.SystemSetting{NewSecuritySetting(models.SettingMaxLoginAttempts, "3")}, nil
			},
		}
		cache := newSecuritySettingsCache(source, testLogger())

		base := time.Now()
		cache.now = func() time.Time { return base }

		cfg := cache.Get(ctx)
		assert.Equal(t, 3, cfg.MaxLoginAttempts)

		fail = true
		cache.now = func() time.Time { return base.Add(securitySettingsTTL + time.Second) }
		cfg = cache.Get(ctx)
		assert.Equal(t, 3, cfg.MaxLoginAttempts, "stale value is better than no value")
	})

	t.Run("garbage values are ignored", func(t *testing.T) {
		source := securitySource(
			NewSecuritySetting(models.SettingMaxLoginAttempts, "not-a-number"),
			NewSecuritySetting(models.SettingPasswordMinLength, "-4"),
			NewSecuritySetting(models.SettingPasswordRequireUpper, "banana"),
		)
		cache := newSecuritySettingsCache(source, testLogger())

		cfg := cache.Get(ctx)
		assert.Equal(t, 5, cfg.MaxLoginAttempts)
		assert.Equal(t, 8, cfg.PasswordMinLength)
		assert.True(t, cfg.PasswordRequireUppercase)
	})

	t.Run("zero disables password rotation", func(t *testing.T) {
		source := securitySource(NewSecuritySetting(models.SettingForcePasswordChange, "0"))
		cache := newSecuritySettingsCache(source, testLogger())

		cfg := cache.Get(ctx)
		assert.Equal(t, 0, cfg.ForcePasswordChangeDays)
	})
}

package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kasemt/hrcore/internal/models"
)

// SecurityCategory is the system settings category holding the
// security-related keys.
const SecurityCategory = "SECURITY"

const securitySettingsTTL = 5 * time.Minute

// SecuritySettings is the resolved set of security knobs with their
// hardcoded fallbacks applied.
type SecuritySettings struct {
	MaxLoginAttempts         int
	LockoutDurationMinutes   int
	PasswordMinLength        int
	PasswordRequireUppercase bool
	PasswordRequireLowercase bool
	PasswordRequireNumber    bool
	PasswordRequireSpecial   bool
	ForcePasswordChangeDays  int
}

// DefaultSecuritySettings returns the fallbacks used when the store is
// unreachable or a key is missing.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		MaxLoginAttempts:         5,
		LockoutDurationMinutes:   15,
		PasswordMinLength:        8,
		PasswordRequireUppercase: true,
		PasswordRequireLowercase: true,
		PasswordRequireNumber:    true,
		PasswordRequireSpecial:   false,
		ForcePasswordChangeDays:  90,
	}
}

type securitySettingsSource interface {
	GetSystemSettingsByCategory(ctx context.Context, category string) ([]*models.SystemSetting, error)
}

// securitySettingsCache caches the SECURITY category for one consumer.
// Each consuming service owns its own instance; instances are
// invalidated independently through SettingsService.OnInvalidate.
type securitySettingsCache struct {
	source securitySettingsSource
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	cached    *SecuritySettings
	fetchedAt time.Time
}

func newSecuritySettingsCache(source securitySettingsSource, logger *slog.Logger) *securitySettingsCache {
	return &securitySettingsCache{
		source: source,
		logger: logger,
		ttl:    securitySettingsTTL,
		now:    time.Now,
	}
}

// Get returns the cached settings, refreshing from the store when the
// cache is cold or stale. A failed refresh degrades to the previous
// value, or the defaults when there is none; it never fails the caller.
func (c *securitySettingsCache) Get(ctx context.Context) SecuritySettings {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached != nil && now.Sub(c.fetchedAt) < c.ttl {
		return *c.cached
	}

	settings, err := c.source.GetSystemSettingsByCategory(ctx, SecurityCategory)
	if err != nil {
		c.logger.Warn("failed to refresh security settings, using fallback",
			slog.Any("error", err))
		if c.cached != nil {
			return *c.cached
		}
		return DefaultSecuritySettings()
	}

	resolved := resolveSecuritySettings(settings)
	c.cached = &resolved
	c.fetchedAt = now
	return resolved
}

// Invalidate drops the cached value so the next Get refreshes
func (c *securitySettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.fetchedAt = time.Time{}
}

func resolveSecuritySettings(settings []*models.SystemSetting) SecuritySettings {
	out := DefaultSecuritySettings()

	for _, s := range settings {
		value := s.EffectiveValue()
		switch s.Key {
		case models.SettingMaxLoginAttempts:
			setInt(&out.MaxLoginAttempts, value)
		case models.SettingLockoutDuration:
			setInt(&out.LockoutDurationMinutes, value)
		case models.SettingPasswordMinLength:
			setInt(&out.PasswordMinLength, value)
		case models.SettingPasswordRequireUpper:
			setBool(&out.PasswordRequireUppercase, value)
		case models.SettingPasswordRequireLower:
			setBool(&out.PasswordRequireLowercase, value)
		case models.SettingPasswordRequireNumber:
			setBool(&out.PasswordRequireNumber, value)
		case models.SettingPasswordRequireSpecial:
			setBool(&out.PasswordRequireSpecial, value)
		case models.SettingForcePasswordChange:
			setIntAllowZero(&out.ForcePasswordChangeDays, value)
		}
	}

	return out
}

func setInt(dst *int, value string) {
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		*dst = n
	}
}

// setIntAllowZero keeps zero and negative values; force_password_change_days
// uses them to disable expiry entirely.
func setIntAllowZero(dst *int, value string) {
	if n, err := strconv.Atoi(value); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, value string) {
	if b, err := strconv.ParseBool(value); err == nil {
		*dst = b
	}
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/kasemt/hrcore/internal/models"
)

// ExpiryStatus is the read-time evaluation of one account's password age.
// Nothing is stored; the answer depends only on password_changed_at and
// the configured maximum.
type ExpiryStatus struct {
	Expired       bool `json:"expired"`
	DaysOld       int  `json:"days_old"`
	MaxDays       int  `json:"max_days"`
	DaysRemaining int  `json:"days_remaining"`
}

// UserLookup is the subset of the user store the expiry checker needs
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordExpiryService computes password age against the configured
// rotation window. It owns its own security settings cache.
type PasswordExpiryService struct {
	users    UserLookup
	settings *securitySettingsCache
	logger   *slog.Logger
	now      func() time.Time
}

func NewPasswordExpiryService(users UserLookup, source securitySettingsSource, logger *slog.Logger) *PasswordExpiryService {
	return &PasswordExpiryService{
		users:    users,
		settings: newSecuritySettingsCache(source, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// InvalidateSettings drops the cached expiry settings
func (s *PasswordExpiryService) InvalidateSettings() {
	s.settings.Invalidate()
}

// Check loads the user and evaluates expiry
func (s *PasswordExpiryService) Check(ctx context.Context, userID string) (ExpiryStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ExpiryStatus{}, err
	}
	return s.Evaluate(ctx, user), nil
}

// Evaluate computes the expiry status for an already-loaded user. A
// force_password_change_days of zero or less disables expiry entirely.
// Accounts without a password_changed_at fall back to their creation
// time.
func (s *PasswordExpiryService) Evaluate(ctx context.Context, user *models.User) ExpiryStatus {
	cfg := s.settings.Get(ctx)
	maxDays := cfg.ForcePasswordChangeDays

	if maxDays <= 0 {
		return ExpiryStatus{Expired: false, MaxDays: maxDays}
	}

	changedAt := user.CreatedAt
	if user.PasswordChangedAt != nil {
		changedAt = *user.PasswordChangedAt
	}

	daysOld := int(s.now().Sub(changedAt).Hours() / 24)
	expired := daysOld >= maxDays

	status := ExpiryStatus{
		Expired: expired,
		DaysOld: daysOld,
		MaxDays: maxDays,
	}
	if !expired {
		status.DaysRemaining = maxDays - daysOld
	}
	return status
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	numberRe  = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// PolicyResult reports every rule a candidate password failed
type PolicyResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// PasswordPolicyService validates passwords against the configured
// complexity rules. It owns its own security settings cache, separate
// from the other consumers.
type PasswordPolicyService struct {
	settings *securitySettingsCache
}

func NewPasswordPolicyService(source securitySettingsSource, logger *slog.Logger) *PasswordPolicyService {
	return &PasswordPolicyService{
		settings: newSecuritySettingsCache(source, logger),
	}
}

// InvalidateSettings drops the cached policy settings
func (s *PasswordPolicyService) InvalidateSettings() {
	s.settings.Invalidate()
}

// Validate checks a password against every configured rule. Rules are
// evaluated independently so the caller gets the complete list of
// violations, not just the first.
func (s *PasswordPolicyService) Validate(ctx context.Context, password string) PolicyResult {
	cfg := s.settings.Get(ctx)
	errs := make([]string, 0)

	if len(password) < cfg.PasswordMinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long", cfg.PasswordMinLength))
	}
	if cfg.PasswordRequireUppercase && !upperRe.MatchString(password) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if cfg.PasswordRequireLowercase && !lowerRe.MatchString(password) {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if cfg.PasswordRequireNumber && !numberRe.MatchString(password) {
		errs = append(errs, "Password must contain at least one number")
	}
	if cfg.PasswordRequireSpecial && !specialRe.MatchString(password) {
		errs = append(errs, "Password must contain at least one special character")
	}

	return PolicyResult{Valid: len(errs) == 0, Errors: errs}
}

// Requirements returns the human-readable list of active rules, built
// from the same settings Validate uses.
func (s *PasswordPolicyService) Requirements(ctx context.Context) []string {
	cfg := s.settings.Get(ctx)

	reqs := []string{fmt.Sprintf("At least %d characters", cfg.PasswordMinLength)}
	if cfg.PasswordRequireUppercase {
		reqs = append(reqs, "At least one uppercase letter (A-Z)")
	}
	if cfg.PasswordRequireLowercase {
		reqs = append(reqs, "At least one lowercase letter (a-z)")
	}
	if cfg.PasswordRequireNumber {
		reqs = append(reqs, "At least one number (0-9)")
	}
	if cfg.PasswordRequireSpecial {
		reqs = append(reqs, `At least one special character (!@#$%^&*(),.?":{}|<>)`)
	}

	return reqs
}

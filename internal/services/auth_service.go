package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/pkg/auth"
	"github.com/kasemt/hrcore/pkg/logger"
)

// UserStore is the persistence interface the auth flow needs
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id, ipAddress string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TokenIssuer mints and validates the JWT pair
type TokenIssuer interface {
	GeneratePair(user *models.User) (*models.TokenPair, error)
	ValidateRefreshToken(tokenString string) (*models.TokenClaims, error)
}

// AccountLockedError rejects a login against a locked identifier. Check
// is set when this very request crossed the threshold.
type AccountLockedError struct {
	Status models.LockStatus
	Check  *models.LockCheckResult
}

func (e *AccountLockedError) Error() string { return "account is locked" }

func (e *AccountLockedError) Unwrap() error { return models.ErrAccountLocked }

// InvalidCredentialsError rejects a login without revealing whether the
// identifier exists. Check carries the remaining-attempts counter when
// the identifier resolved to an account.
type InvalidCredentialsError struct {
	Check *models.LockCheckResult
}

func (e *InvalidCredentialsError) Error() string { return "invalid credentials" }

func (e *InvalidCredentialsError) Unwrap() error { return models.ErrUnauthorized }

// PasswordPolicyError carries the full list of violated password rules
type PasswordPolicyError struct {
	Errors []string
}

func (e *PasswordPolicyError) Error() string { return "password does not meet requirements" }

func (e *PasswordPolicyError) Unwrap() error { return models.ErrBadRequest }

// LoginResult is the successful login response payload
type LoginResult struct {
	User               *models.User      `json:"user"`
	Tokens             *models.TokenPair `json:"tokens"`
	RedirectTo         string            `json:"redirect_to"`
	MustChangePassword bool              `json:"must_change_password"`
	PasswordExpiry     ExpiryStatus      `json:"password_expiry"`
}

// AuthService orchestrates the login state machine over the lockout
// tracker, policy evaluator and expiry checker. Every rejecting branch
// records the attempt first so the trail is complete even for refused
// logins.
type AuthService struct {
	users   UserStore
	lockout *LockoutService
	policy  *PasswordPolicyService
	expiry  *PasswordExpiryService
	tokens  TokenIssuer
	audit   *logger.AuditLogger
	logger  *slog.Logger
}

func NewAuthService(users UserStore, lockout *LockoutService, policy *PasswordPolicyService, expiry *PasswordExpiryService, tokens TokenIssuer, audit *logger.AuditLogger, log *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		lockout: lockout,
		policy:  policy,
		expiry:  expiry,
		tokens:  tokens,
		audit:   audit,
		logger:  log,
	}
}

// Login runs the full authentication flow for one request. The
// identifier is tried as an employee ID first, then as an email.
func (s *AuthService) Login(ctx context.Context, identifier, password, ipAddress, userAgent string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, models.ErrBadRequest
	}

	status, err := s.lockout.IsAccountLocked(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		s.recordFailure(ctx, identifier, nil, ipAddress, userAgent, "Account locked")
		return nil, &AccountLockedError{Status: status}
	}

	user, err := s.resolveUser(ctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		s.recordFailure(ctx, identifier, nil, ipAddress, userAgent, "User not found")
		return nil, &InvalidCredentialsError{}
	}
	if err != nil {
		return nil, err
	}

	switch user.Status {
	case "inactive":
		s.recordFailure(ctx, identifier, &user.ID, ipAddress, userAgent, "Account is inactive")
		return nil, models.ErrAccountInactive
	case "suspended":
		s.recordFailure(ctx, identifier, &user.ID, ipAddress, userAgent, "Account is suspended")
		return nil, models.ErrAccountSuspended
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailure(ctx, identifier, &user.ID, ipAddress, userAgent, "Invalid password")

		check, lockErr := s.lockout.CheckAndLock(ctx, identifier, &user.ID)
		if lockErr != nil {
			s.logger.Error("lock evaluation failed after invalid password",
				slog.String("employee_id", identifier),
				slog.Any("error", lockErr))
			return nil, &InvalidCredentialsError{}
		}
		if check.ShouldLock {
			lockStatus, statusErr := s.lockout.IsAccountLocked(ctx, identifier)
			if statusErr != nil {
				lockStatus = models.LockStatus{Locked: true, MinutesRemaining: check.LockDuration}
			}
			return nil, &AccountLockedError{Status: lockStatus, Check: &check}
		}
		return nil, &InvalidCredentialsError{Check: &check}
	}

	s.lockout.RecordAttempt(ctx, &models.LoginAttempt{
		EmployeeID: identifier,
		UserID:     &user.ID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Success:    true,
	})
	s.lockout.ClearFailedAttempts(ctx, identifier)

	if err := s.users.UpdateLastLogin(ctx, user.ID, ipAddress); err != nil {
		s.logger.Error("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	tokens, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &LoginResult{
		User:               user,
		Tokens:             tokens,
		RedirectTo:         redirectForRole(user.Role),
		MustChangePassword: user.MustChangePassword,
		PasswordExpiry:     s.expiry.Evaluate(ctx, user),
	}, nil
}

// ChangePassword verifies the current password, validates the new one
// against the policy and rotates the hash. password_changed_at is
// stamped in the same transaction as the hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.audit.LogPasswordChange(userID, ipAddress, false)
		return models.ErrUnauthorized
	}

	if result := s.policy.Validate(ctx, newPassword); !result.Valid {
		return &PasswordPolicyError{Errors: result.Errors}
	}
	if auth.ComparePassword(user.PasswordHash, newPassword) == nil {
		return &PasswordPolicyError{Errors: []string{"New password must differ from the current password"}}
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.audit.LogPasswordChange(userID, ipAddress, true)
	return nil
}

// Refresh validates a refresh token and mints a fresh pair. A locked or
// non-active account cannot refresh its way past a lock.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if user.Status != "active" {
		return nil, models.ErrUnauthorized
	}

	status, err := s.lockout.IsAccountLocked(ctx, user.EmployeeID)
	if err != nil {
		return nil, err
	}
	if status.Locked {
		return nil, &AccountLockedError{Status: status}
	}

	return s.tokens.GeneratePair(user)
}

// Logout records the event. Tokens are stateless; the client discards
// its pair.
func (s *AuthService) Logout(ctx context.Context, userID, ipAddress, userAgent string) {
	s.audit.LogAccountAction("logout", userID, ipAddress, nil)
}

// PasswordRequirements lists the active policy rules for display
func (s *AuthService) PasswordRequirements(ctx context.Context) []string {
	return s.policy.Requirements(ctx)
}

func (s *AuthService) resolveUser(ctx context.Context, identifier string) (*models.User, error) {
	user, err := s.users.GetByEmployeeID(ctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		return s.users.GetByEmail(ctx, identifier)
	}
	return user, err
}

func (s *AuthService) recordFailure(ctx context.Context, identifier string, userID *string, ipAddress, userAgent, reason string) {
	s.lockout.RecordAttempt(ctx, &models.LoginAttempt{
		EmployeeID:    identifier,
		UserID:        userID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: &reason,
		AttemptTime:   time.Now(),
	})

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "login",
		Identifier:    identifier,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
}

func redirectForRole(role string) string {
	switch role {
	case "admin":
		return "/admin"
	case "applicant":
		return "/applicant"
	default:
		return "/dashboard"
	}
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasemt/hrcore/internal/models"
	"github.com/kasemt/hrcore/pkg/auth"
	"github.com/kasemt/hrcore/pkg/logger"
)

const testPassword = "Sufficient1!"

// bcrypt at the production cost is slow enough to dominate these tests,
// so the shared fixture hash is computed once.
var (
	testHashOnce sync.Once
	testHash     string
	testHashErr  error
)

func fixtureHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		testHash, testHashErr = auth.HashPassword(testPassword)
	})
	require.NoError(t, testHashErr)
	return testHash
}

func newTestAuthService(users *MockUserStore, attempts *MockLoginAttemptStore, locks *MockAccountLockStore, tokens TokenIssuer) *AuthService {
	log := testLogger()
	return NewAuthService(
		users,
		NewLockoutService(attempts, locks, securitySource(), nil, log),
		NewPasswordPolicyService(securitySource(), log),
		NewPasswordExpiryService(users, securitySource(), log),
		tokens,
		logger.NewAuditLogger(log),
		log,
	)
}

func activeUser(t *testing.T) *models.User {
	user := NewTestUser("u1", "E001", "e001@example.com")
	user.PasswordHash = fixtureHash(t)
	return user
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty credentials", func(t *testing.T) {
		svc := newTestAuthService(&MockUserStore{}, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		_, err := svc.Login(ctx, "", "", "127.0.0.1", "test")
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = svc.Login(ctx, "E001", "", "127.0.0.1", "test")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("locked account is rejected and the attempt recorded", func(t *testing.T) {
		until := time.Now().Add(10 * time.Minute)
		locks := &MockAccountLockStore{
			GetActiveLockFunc: func(ctx context.Context, employeeID string) (*models.AccountLock, error) {
				return &models.AccountLock{EmployeeID: employeeID, LockedUntil: until, Reason: "too many failures"}, nil
			},
		}
		attempts := &MockLoginAttemptStore{}
		svc := newTestAuthService(&MockUserStore{}, attempts, locks, &MockTokenIssuer{})

		_, err := svc.Login(ctx, "E001", testPassword, "127.0.0.1", "test")

		var lockedErr *AccountLockedError
		require.ErrorAs(t, err, &lockedErr)
		assert.ErrorIs(t, err, models.ErrAccountLocked)
		assert.True(t, lockedErr.Status.Locked)
		assert.Nil(t, lockedErr.Check)

		require.Len(t, attempts.Inserted, 1)
		assert.False(t, attempts.Inserted[0].Success)
		require.NotNil(t, attempts.Inserted[0].FailureReason)
		assert.Equal(t, "Account locked", *attempts.Inserted[0].FailureReason)
	})

	t.Run("unknown identifier is rejected without an attempt counter", func(t *testing.T) {
		attempts := &MockLoginAttemptStore{}
		svc := newTestAuthService(&MockUserStore{}, attempts, &MockAccountLockStore{}, &MockTokenIssuer{})

		_, err := svc.Login(ctx, "nobody", testPassword, "127.0.0.1", "test")

		var credErr *InvalidCredentialsError
		require.ErrorAs(t, err, &credErr)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		assert.Nil(t, credErr.Check, "remaining attempts must not reveal whether the account exists")

		require.Len(t, attempts.Inserted, 1)
		assert.Equal(t, "User not found", *attempts.Inserted[0].FailureReason)
	})

	t.Run("inactive and suspended accounts are rejected after recording", func(t *testing.T) {
		for status, wantErr := range map[string]error{
			"inactive":  models.ErrAccountInactive,
			"suspended": models.ErrAccountSuspended,
		} {
			user := activeUser(t)
			user.Status = status
			users := &MockUserStore{
				GetByEmployeeIDFunc: func(ctx context.Context, employeeID string) (*models.User, error) {
					return user, nil
				},
			}
			attempts := &MockLoginAttemptStore{}
			svc := newTestAuthService(users, attempts, &MockAccountLockStore{}, &MockTokenIssuer{})

			_, err := svc.Login(ctx, "E001", testPassword, "127.0.0.1", "test")
			assert.ErrorIs(t, err, wantErr)
			require.Len(t, attempts.Inserted, 1)
		}
	})

	t.Run("wrong password reports remaining attempts", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByEmployeeIDFunc: func(ctx context.Context, employeeID string) (*models.User, error) {
				return user, nil
			},
		}
		attempts := &MockLoginAttemptStore{
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				return 2, nil
			},
		}
		svc := newTestAuthService(users, attempts, &MockAccountLockStore{}, &MockTokenIssuer{})

		_, err := svc.Login(ctx, "E001", "wrong-password", "127.0.0.1", "test")

		var credErr *InvalidCredentialsError
		require.ErrorAs(t, err, &credErr)
		require.NotNil(t, credErr.Check)
		assert.Equal(t, 3, credErr.Check.RemainingAttempts)
	})

	t.Run("crossing the threshold locks and reports the lock", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByEmployeeIDFunc: func(ctx context.Context, employeeID string) (*models.User, error) {
				return user, nil
			},
		}

		failures := 0
		attempts := &MockLoginAttemptStore{
			InsertFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
				if !attempt.Success {
					failures++
				}
				return nil
			},
			CountRecentFailuresFunc: func(ctx context.Context, employeeID string, since time.Time) (int, error) {
				return failures, nil
			},
		}

		var activeLock *models.AccountLock
		locks := &MockAccountLockStore{
			GetActiveLockFunc: func(ctx context.Context, employeeID string) (*models.AccountLock, error) {
				if activeLock == nil {
					return nil, models.ErrNotFound
				}
				return activeLock, nil
			},
			CreateIfAbsentFunc: func(ctx context.Context, lock *models.AccountLock) (*models.AccountLock, bool, error) {
				activeLock = lock
				return lock, true, nil
			},
		}
		svc := newTestAuthService(users, attempts, locks, &MockTokenIssuer{})

		// first four failures count down without locking
		for i := 0; i < 4; i++ {
			_, err := svc.Login(ctx, "E001", "wrong-password", "127.0.0.1", "test")
			var credErr *InvalidCredentialsError
			require.ErrorAs(t, err, &credErr)
			require.NotNil(t, credErr.Check)
			assert.Equal(t, 5-(i+1), credErr.Check.RemainingAttempts)
		}

		// the fifth crosses the threshold
		_, err := svc.Login(ctx, "E001", "wrong-password", "127.0.0.1", "test")
		var lockedErr *AccountLockedError
		require.ErrorAs(t, err, &lockedErr)
		require.NotNil(t, lockedErr.Check)
		assert.True(t, lockedErr.Check.ShouldLock)
		assert.Equal(t, 15, lockedErr.Check.LockDuration)
		assert.True(t, lockedErr.Status.Locked)
		require.NotNil(t, activeLock)

		// the sixth is refused before touching the password
		_, err = svc.Login(ctx, "E001", testPassword, "127.0.0.1", "test")
		require.ErrorAs(t, err, &lockedErr)
		assert.Nil(t, lockedErr.Check)
	})

	t.Run("successful login clears failures and issues tokens", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByEmployeeIDFunc: func(ctx context.Context, employeeID string) (*models.User, error) {
				return user, nil
			},
		}
		cleared := false
		attempts := &MockLoginAttemptStore{
			ClearFailuresFunc: func(ctx context.Context, employeeID string) error {
				cleared = true
				return nil
			},
		}
		svc := newTestAuthService(users, attempts, &MockAccountLockStore{}, &MockTokenIssuer{})

		result, err := svc.Login(ctx, "E001", testPassword, "127.0.0.1", "test")
		require.NoError(t, err)
		assert.Equal(t, "access_u1", result.Tokens.AccessToken)
		assert.Equal(t, "/dashboard", result.RedirectTo)
		assert.False(t, result.MustChangePassword)
		assert.False(t, result.PasswordExpiry.Expired)
		assert.True(t, cleared)
	})

	t.Run("email works as the identifier", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				if email == user.Email {
					return user, nil
				}
				return nil, models.ErrNotFound
			},
		}
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		result, err := svc.Login(ctx, "e001@example.com", testPassword, "127.0.0.1", "test")
		require.NoError(t, err)
		assert.Equal(t, "u1", result.User.ID)
	})

	t.Run("redirect follows the role", func(t *testing.T) {
		for role, redirect := range map[string]string{
			"admin":     "/admin",
			"hr":        "/dashboard",
			"employee":  "/dashboard",
			"applicant": "/applicant",
		} {
			user := activeUser(t)
			user.Role = role
			users := &MockUserStore{
				GetByEmployeeIDFunc: func(ctx context.Context, employeeID string) (*models.User, error) {
					return user, nil
				},
			}
			svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

			result, err := svc.Login(ctx, "E001", testPassword, "127.0.0.1", "test")
			require.NoError(t, err)
			assert.Equal(t, redirect, result.RedirectTo, "role %s", role)
		}
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	userStore := func(t *testing.T) *MockUserStore {
		user := activeUser(t)
		return &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
		}
	}

	t.Run("wrong current password is unauthorized", func(t *testing.T) {
		users := userStore(t)
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		err := svc.ChangePassword(ctx, "u1", "wrong", "NewSufficient2!", "127.0.0.1")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("weak new password reports every violation", func(t *testing.T) {
		users := userStore(t)
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		err := svc.ChangePassword(ctx, "u1", testPassword, "weak", "127.0.0.1")

		var policyErr *PasswordPolicyError
		require.ErrorAs(t, err, &policyErr)
		assert.ErrorIs(t, err, models.ErrBadRequest)
		assert.Len(t, policyErr.Errors, 3)
	})

	t.Run("reusing the current password is rejected", func(t *testing.T) {
		users := userStore(t)
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		err := svc.ChangePassword(ctx, "u1", testPassword, testPassword, "127.0.0.1")

		var policyErr *PasswordPolicyError
		require.ErrorAs(t, err, &policyErr)
		assert.Contains(t, policyErr.Errors, "New password must differ from the current password")
	})

	t.Run("valid change stores a new hash", func(t *testing.T) {
		user := activeUser(t)
		var savedHash string
		users := &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
			UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
				savedHash = passwordHash
				return nil
			},
		}
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		require.NoError(t, svc.ChangePassword(ctx, "u1", testPassword, "NewSufficient2!", "127.0.0.1"))
		require.NotEmpty(t, savedHash)
		assert.NoError(t, auth.ComparePassword(savedHash, "NewSufficient2!"))
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	validIssuer := func(user *models.User) *MockTokenIssuer {
		return &MockTokenIssuer{
			ValidateRefreshTokenFunc: func(tokenString string) (*models.TokenClaims, error) {
				return &models.TokenClaims{UserID: user.ID, EmployeeID: user.EmployeeID, Role: user.Role, Type: "refresh"}, nil
			},
		}
	}

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		svc := newTestAuthService(&MockUserStore{}, &MockLoginAttemptStore{}, &MockAccountLockStore{}, &MockTokenIssuer{})

		_, err := svc.Refresh(ctx, "garbage")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("non-active account cannot refresh", func(t *testing.T) {
		user := activeUser(t)
		user.Status = "suspended"
		users := &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, validIssuer(user))

		_, err := svc.Refresh(ctx, "token")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("locked account cannot refresh past its lock", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
		}
		locks := &MockAccountLockStore{
			GetActiveLockFunc: func(ctx context.Context, employeeID string) (*models.AccountLock, error) {
				return &models.AccountLock{EmployeeID: employeeID, LockedUntil: time.Now().Add(5 * time.Minute), Reason: "locked"}, nil
			},
		}
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, locks, validIssuer(user))

		_, err := svc.Refresh(ctx, "token")
		assert.ErrorIs(t, err, models.ErrAccountLocked)
	})

	t.Run("valid refresh mints a new pair", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newTestAuthService(users, &MockLoginAttemptStore{}, &MockAccountLockStore{}, validIssuer(user))

		pair, err := svc.Refresh(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "access_u1", pair.AccessToken)
	})
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasemt/hrcore/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:         "u1",
		EmployeeID: "E001",
		Email:      "e001@example.com",
		Role:       "employee",
	}
}

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := tm.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "E001", claims.EmployeeID)
	assert.Equal(t, "employee", claims.Role)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	other := NewTokenManager("other-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)

	_, err = other.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", -1*time.Minute, 7*24*time.Hour)

	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)

	_, err = tm.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_Garbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestTokenManager_ValidateRefreshToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)

	claims, err := tm.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Type)

	// an access token must not pass as a refresh token
	_, err = tm.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasemt/hrcore/internal/models"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, models.ErrNotFound
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := tm.GeneratePair(testUser())
	require.NoError(t, err)

	t.Run("valid access token passes with claims in context", func(t *testing.T) {
		var claims *models.TokenClaims
		handler := AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims = GetUserFromContext(r)
		}))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, claims)
		assert.Equal(t, "u1", claims.UserID)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		called := false
		handler := AuthMiddleware(tm)(okHandler(&called))

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		called := false
		handler := AuthMiddleware(tm)(okHandler(&called))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Token "+pair.AccessToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("refresh token cannot reach the API", func(t *testing.T) {
		called := false
		handler := AuthMiddleware(tm)(okHandler(&called))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})
}

func TestRequireRole(t *testing.T) {
	repo := &stubUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Role: "employee"},
		"a1": {ID: "a1", Role: "admin"},
	}}

	withClaims := func(req *http.Request, userID, tokenRole string) *http.Request {
		claims := &models.TokenClaims{Type: "access", UserID: userID, Role: tokenRole}
		return req.WithContext(context.WithValue(req.Context(), UserContextKey, claims))
	}

	t.Run("allows a matching role", func(t *testing.T) {
		called := false
		handler := RequireRole(repo, "admin", "hr")(okHandler(&called))

		req := withClaims(httptest.NewRequest("GET", "/admin", nil), "a1", "admin")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
	})

	t.Run("rejects an insufficient role", func(t *testing.T) {
		called := false
		handler := RequireRole(repo, "admin")(okHandler(&called))

		req := withClaims(httptest.NewRequest("GET", "/admin", nil), "u1", "employee")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, called)
	})

	t.Run("trusts the store over the token", func(t *testing.T) {
		// stale token still claims admin, the store says employee
		called := false
		handler := RequireRole(repo, "admin")(okHandler(&called))

		req := withClaims(httptest.NewRequest("GET", "/admin", nil), "u1", "admin")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, called)
	})

	t.Run("rejects without claims", func(t *testing.T) {
		called := false
		handler := RequireRole(repo, "admin")(okHandler(&called))

		req := httptest.NewRequest("GET", "/admin", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("rejects a deleted user", func(t *testing.T) {
		called := false
		handler := RequireRole(repo, "admin")(okHandler(&called))

		req := withClaims(httptest.NewRequest("GET", "/admin", nil), "ghost", "admin")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})
}

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftops/gavel/internal/auth"
)

func authedHandler(t *testing.T, jwt *auth.JWTProvider, captured *auth.Actor) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		*captured = actor
		w.WriteHeader(http.StatusNoContent)
	})
	return AuthMiddleware(jwt)(next)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	t.Parallel()
	jwt := auth.NewJWTProvider("test-secret", "gavel", "gavel-clients")
	userID := uuid.New()
	token, err := jwt.IssueToken(userID, auth.RoleCaptain, time.Minute)
	require.NoError(t, err)

	var actor auth.Actor
	handler := authedHandler(t, jwt, &actor)

	req := httptest.NewRequest(http.MethodGet, "/auctions/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, auth.RoleCaptain, actor.Role)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	t.Parallel()
	jwt := auth.NewJWTProvider("test-secret", "gavel", "gavel-clients")

	t.Run("missing header", func(t *testing.T) {
		var actor auth.Actor
		handler := authedHandler(t, jwt, &actor)
		req := httptest.NewRequest(http.MethodGet, "/auctions/x", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		var actor auth.Actor
		handler := authedHandler(t, jwt, &actor)
		req := httptest.NewRequest(http.MethodGet, "/auctions/x", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewJWTProvider("other-secret", "gavel", "gavel-clients")
		token, err := other.IssueToken(uuid.New(), auth.RoleHost, time.Minute)
		require.NoError(t, err)

		var actor auth.Actor
		handler := authedHandler(t, jwt, &actor)
		req := httptest.NewRequest(http.MethodGet, "/auctions/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := jwt.IssueToken(uuid.New(), auth.RoleHost, -time.Minute)
		require.NoError(t, err)

		var actor auth.Actor
		handler := authedHandler(t, jwt, &actor)
		req := httptest.NewRequest(http.MethodGet, "/auctions/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

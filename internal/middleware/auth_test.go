// TransitBook | 2026
// auth_test.go

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitbook/backend/internal/core"
	"github.com/transitbook/backend/internal/middleware"
)

type fakeValidator struct {
	claims *middleware.AccessClaims
	err    error
}

func (f *fakeValidator) ValidateToken(
	_ context.Context,
	_ string,
) (*middleware.AccessClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()

	var resp struct {
		Success bool `json:"success"`
		Error   *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("cookie preferred", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		r.Header.Set("Authorization", "Bearer header-token")

		assert.Equal(t, "cookie-token", middleware.TokenFromRequest(r))
	})

	t.Run("bearer fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer header-token")

		assert.Equal(t, "header-token", middleware.TokenFromRequest(r))
	})

	t.Run("case-insensitive scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "bearer header-token")

		assert.Equal(t, "header-token", middleware.TokenFromRequest(r))
	})

	t.Run("no token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, middleware.TokenFromRequest(r))
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.Empty(t, middleware.TokenFromRequest(r))
	})
}

func TestAuthenticator(t *testing.T) {
	claims := &middleware.AccessClaims{
		UserID:    "user-1",
		Roles:     []string{"CLIENT"},
		SessionID: "session-1",
	}

	t.Run("populates request context", func(t *testing.T) {
		var gotUserID, gotSessionID string
		var gotRoles []string

		handler := middleware.Authenticator(&fakeValidator{claims: claims})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID = middleware.GetUserID(r.Context())
				gotRoles = middleware.GetUserRoles(r.Context())
				gotSessionID = middleware.GetSessionID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", gotUserID)
		assert.Equal(t, []string{"CLIENT"}, gotRoles)
		assert.Equal(t, "session-1", gotSessionID)
	})

	t.Run("missing token is 401", func(t *testing.T) {
		handler := middleware.Authenticator(
			&fakeValidator{claims: claims})(okHandler())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeErrorCode(t, w.Body.Bytes()))
	})

	t.Run("revoked session is 401 with its own code", func(t *testing.T) {
		handler := middleware.Authenticator(
			&fakeValidator{err: core.ErrSessionRevoked})(okHandler())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "SESSION_REVOKED", decodeErrorCode(t, w.Body.Bytes()))
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		handler := middleware.Authenticator(
			&fakeValidator{err: core.ErrTokenInvalid})(okHandler())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "TOKEN_INVALID", decodeErrorCode(t, w.Body.Bytes()))
	})
}

func TestRequireRole(t *testing.T) {
	serve := func(t *testing.T, roles []string, required ...string) *httptest.ResponseRecorder {
		t.Helper()

		handler := middleware.RequireRole(required...)(okHandler())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if roles != nil {
			ctx := context.WithValue(r.Context(), middleware.UserRolesKey, roles)
			r = r.WithContext(ctx)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("matching role passes", func(t *testing.T) {
		w := serve(t, []string{"DRIVER"}, "DRIVER")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("any of several roles passes", func(t *testing.T) {
		w := serve(t, []string{"CLIENT", "DRIVER"}, "DRIVER")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing role is 403", func(t *testing.T) {
		w := serve(t, []string{"CLIENT"}, "ADMIN")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INSUFFICIENT_ROLE", decodeErrorCode(t, w.Body.Bytes()))
	})

	t.Run("unauthenticated is 401", func(t *testing.T) {
		w := serve(t, nil, "ADMIN")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// TransitBook | 2026
// handler_test.go

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitbook/backend/internal/auth"
	"github.com/transitbook/backend/internal/middleware"
)

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(t *testing.T, svc *auth.Service) chi.Router {
	t.Helper()

	handler := auth.NewHandler(svc, false)
	router := chi.NewRouter()
	handler.RegisterRoutes(
		router,
		middleware.Authenticator(svc),
		passthrough,
	)
	return router
}

func postJSON(
	t *testing.T,
	router http.Handler,
	path string,
	payload any,
) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandler_Login(t *testing.T) {
	t.Run("sets both auth cookies", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/login", auth.LoginRequest{
			Email:    "rider@example.com",
			Password: "Correct-Horse-9",
		})

		require.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		access := cookieByName(cookies, "auth_token")
		refresh := cookieByName(cookies, "refresh_token")
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.NotEmpty(t, access.Value)
		assert.NotEmpty(t, refresh.Value)
		assert.True(t, access.HttpOnly)
		assert.True(t, refresh.HttpOnly)
		assert.Greater(t, refresh.MaxAge, access.MaxAge)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				User auth.UserResponse `json:"user"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "rider@example.com", resp.Data.User.Email)
	})

	t.Run("bad credentials is 401 without cookies", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/login", auth.LoginRequest{
			Email:    "rider@example.com",
			Password: "wrong-password",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("invalid payload is 400", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/login", auth.LoginRequest{
			Email: "not-an-email",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_LoginLogoutRoundTrip(t *testing.T) {
	users := newFakeUserProvider()
	registry := newFakeRegistry()
	svc := newTestService(t, users, registry)
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)
	router := newTestRouter(t, svc)

	login := postJSON(t, router, "/auth/login", auth.LoginRequest{
		Email:    "rider@example.com",
		Password: "Correct-Horse-9",
	})
	require.Equal(t, http.StatusOK, login.Code)
	access := cookieByName(login.Result().Cookies(), "auth_token")
	require.NotNil(t, access)

	// Authenticated /me works with the cookie.
	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.AddCookie(access)
	meW := httptest.NewRecorder()
	router.ServeHTTP(meW, me)
	require.Equal(t, http.StatusOK, meW.Code)

	// Logout revokes the session and clears cookies.
	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(access)
	logoutW := httptest.NewRecorder()
	router.ServeHTTP(logoutW, logout)
	require.Equal(t, http.StatusNoContent, logoutW.Code)

	cleared := cookieByName(logoutW.Result().Cookies(), "auth_token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// The same cookie no longer authenticates.
	meAgain := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meAgain.AddCookie(access)
	meAgainW := httptest.NewRecorder()
	router.ServeHTTP(meAgainW, meAgain)
	assert.Equal(t, http.StatusUnauthorized, meAgainW.Code)
}

func TestHandler_LogoutWithoutToken(t *testing.T) {
	users := newFakeUserProvider()
	svc := newTestService(t, users, newFakeRegistry())
	router := newTestRouter(t, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotNil(t, cookieByName(w.Result().Cookies(), "auth_token"))
}

func TestHandler_LogoutWithExpiredAccessToken(t *testing.T) {
	users := newFakeUserProvider()
	registry := newFakeRegistry()
	svc := newTestServiceWithAccessTTL(t, users, registry, -time.Minute)
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)
	router := newTestRouter(t, svc)

	login := postJSON(t, router, "/auth/login", auth.LoginRequest{
		Email:    "rider@example.com",
		Password: "Correct-Horse-9",
	})
	require.Equal(t, http.StatusOK, login.Code)
	access := cookieByName(login.Result().Cookies(), "auth_token")
	refresh := cookieByName(login.Result().Cookies(), "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	// The access cookie is already past its window, but logout still
	// has to kill the session behind it.
	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(access)
	logoutW := httptest.NewRecorder()
	router.ServeHTTP(logoutW, logout)
	require.Equal(t, http.StatusNoContent, logoutW.Code)

	// The 30-day refresh token must be dead now.
	redeem := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	redeem.AddCookie(refresh)
	redeemW := httptest.NewRecorder()
	router.ServeHTTP(redeemW, redeem)
	assert.Equal(t, http.StatusUnauthorized, redeemW.Code)
}

func TestHandler_LogoutWithRefreshCookieOnly(t *testing.T) {
	users := newFakeUserProvider()
	registry := newFakeRegistry()
	svc := newTestService(t, users, registry)
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)
	router := newTestRouter(t, svc)

	login := postJSON(t, router, "/auth/login", auth.LoginRequest{
		Email:    "rider@example.com",
		Password: "Correct-Horse-9",
	})
	require.Equal(t, http.StatusOK, login.Code)
	refresh := cookieByName(login.Result().Cookies(), "refresh_token")
	require.NotNil(t, refresh)

	// Only the refresh cookie survives, for example after the browser
	// dropped the session cookie. Logout still revokes the session.
	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(refresh)
	logoutW := httptest.NewRecorder()
	router.ServeHTTP(logoutW, logout)
	require.Equal(t, http.StatusNoContent, logoutW.Code)

	redeem := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	redeem.AddCookie(refresh)
	redeemW := httptest.NewRecorder()
	router.ServeHTTP(redeemW, redeem)
	assert.Equal(t, http.StatusUnauthorized, redeemW.Code)
}

func TestHandler_Refresh(t *testing.T) {
	t.Run("redeems cookie token", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)
		router := newTestRouter(t, svc)

		login := postJSON(t, router, "/auth/login", auth.LoginRequest{
			Email:    "rider@example.com",
			Password: "Correct-Horse-9",
		})
		require.Equal(t, http.StatusOK, login.Code)
		refresh := cookieByName(login.Result().Cookies(), "refresh_token")
		require.NotNil(t, refresh)

		r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		r.AddCookie(refresh)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		rotated := cookieByName(w.Result().Cookies(), "auth_token")
		require.NotNil(t, rotated)
		assert.NotEmpty(t, rotated.Value)
	})

	t.Run("no token is 401", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		router := newTestRouter(t, svc)

		r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("access token in the refresh slot is 401", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)
		router := newTestRouter(t, svc)

		login := postJSON(t, router, "/auth/login", auth.LoginRequest{
			Email:    "rider@example.com",
			Password: "Correct-Horse-9",
		})
		access := cookieByName(login.Result().Cookies(), "auth_token")
		require.NotNil(t, access)

		w := postJSON(t, router, "/auth/refresh", auth.RefreshRequest{
			RefreshToken: access.Value,
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandler_Register(t *testing.T) {
	t.Run("valid registration is 201", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/register", auth.RegisterRequest{
			Email:    "new@example.com",
			Name:     "New Rider",
			Password: "Correct-Horse-9",
			UserType: auth.RoleClient,
		})

		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data auth.UserResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "new@example.com", resp.Data.Email)
		assert.Equal(t, []string{auth.RoleClient}, resp.Data.Roles)
	})

	t.Run("unknown role is 400", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/register", auth.RegisterRequest{
			Email:    "new@example.com",
			Name:     "New Rider",
			Password: "Correct-Horse-9",
			UserType: "SUPERUSER",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		users := newFakeUserProvider()
		svc := newTestService(t, users, newFakeRegistry())
		seedUser(t, users, "taken@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)
		router := newTestRouter(t, svc)

		w := postJSON(t, router, "/auth/register", auth.RegisterRequest{
			Email:    "taken@example.com",
			Name:     "New Rider",
			Password: "Correct-Horse-9",
			UserType: auth.RoleClient,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHandler_ResetPassword(t *testing.T) {
	users := newFakeUserProvider()
	svc := newTestService(t, users, newFakeRegistry())
	router := newTestRouter(t, svc)

	t.Run("valid payload accepted", func(t *testing.T) {
		w := postJSON(t, router, "/auth/reset-password", auth.ResetPasswordRequest{
			Token:       "0123456789abcdef0123456789abcdef",
			NewPassword: "Correct-Horse-9",
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("short token rejected", func(t *testing.T) {
		w := postJSON(t, router, "/auth/reset-password", auth.ResetPasswordRequest{
			Token:       "short",
			NewPassword: "Correct-Horse-9",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		w := postJSON(t, router, "/auth/reset-password", auth.ResetPasswordRequest{
			Token:       "0123456789abcdef0123456789abcdef",
			NewPassword: "alllowercase",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

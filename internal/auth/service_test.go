// TransitBook | 2026
// service_test.go

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/transitbook/backend/internal/auth"
	"github.com/transitbook/backend/internal/config"
	"github.com/transitbook/backend/internal/core"
)

type fakeUserProvider struct {
	mu      sync.Mutex
	byEmail map[string]*auth.UserInfo
	byID    map[string]*auth.UserInfo
}

func newFakeUserProvider() *fakeUserProvider {
	return &fakeUserProvider{
		byEmail: make(map[string]*auth.UserInfo),
		byID:    make(map[string]*auth.UserInfo),
	}
}

func (f *fakeUserProvider) add(user *auth.UserInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
}

func (f *fakeUserProvider) GetByEmail(
	_ context.Context,
	email string,
) (*auth.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserProvider) GetByID(
	_ context.Context,
	id string,
) (*auth.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *user
	clone.PasswordHash = ""
	return &clone, nil
}

func (f *fakeUserProvider) Register(
	_ context.Context,
	input auth.RegistrationInput,
) (*auth.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[input.Email]; exists {
		return nil, core.ErrDuplicateKey
	}
	user := &auth.UserInfo{
		ID:       "user-" + input.Email,
		Email:    input.Email,
		Name:     input.Name,
		IsActive: true,
		Roles:    []string{input.Role},
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return user, nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{revoked: make(map[string]bool)}
}

func (f *fakeRegistry) IsValid(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.revoked[sessionID], nil
}

func (f *fakeRegistry) Invalidate(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID != "" {
		f.revoked[sessionID] = true
	}
	return nil
}

func newTestService(
	t *testing.T,
	users *fakeUserProvider,
	registry *fakeRegistry,
) *auth.Service {
	t.Helper()
	return newTestServiceWithAccessTTL(t, users, registry, time.Hour)
}

func newTestServiceWithAccessTTL(
	t *testing.T,
	users *fakeUserProvider,
	registry *fakeRegistry,
	accessTTL time.Duration,
) *auth.Service {
	t.Helper()

	cfg := config.AuthConfig{
		JWTSecret:        "0123456789abcdef0123456789abcdef",
		Issuer:           "transitbook-test",
		Audience:         "transitbook-api",
		AccessTokenTTL:   accessTTL,
		RememberTokenTTL: 7 * 24 * time.Hour,
		RefreshTokenTTL:  30 * 24 * time.Hour,
	}

	hasher, err := core.NewPasswordHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)

	return auth.NewService(users, hasher, tokens, registry, cfg)
}

func seedUser(
	t *testing.T,
	users *fakeUserProvider,
	email, password string,
	roles []string,
	active bool,
) *auth.UserInfo {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &auth.UserInfo{
		ID:           "user-" + email,
		Email:        email,
		Name:         "Test User",
		PasswordHash: string(hash),
		IsActive:     active,
		Roles:        roles,
		CreatedAt:    time.Now(),
	}
	users.add(user)
	return user
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login issues token pair", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		result, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.NotEmpty(t, result.SessionID)
		assert.Equal(t, "rider@example.com", result.User.Email)
		assert.WithinDuration(t,
			time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)

		claims, err := svc.ValidateToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.UserID)
		assert.Equal(t, []string{auth.RoleClient}, claims.Roles)
		assert.Equal(t, result.SessionID, claims.SessionID)
	})

	t.Run("remember extends access token lifetime", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		result, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", true)
		require.NoError(t, err)
		assert.WithinDuration(t,
			time.Now().Add(7*24*time.Hour), result.ExpiresAt, 5*time.Second)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		_, unknownErr := svc.Login(ctx, "nobody@example.com", "whatever", false)
		require.Error(t, unknownErr)
		assert.True(t, errors.Is(unknownErr, core.ErrInvalidCredentials))

		_, wrongErr := svc.Login(ctx, "rider@example.com", "wrong-password", false)
		require.Error(t, wrongErr)
		assert.True(t, errors.Is(wrongErr, core.ErrInvalidCredentials))
	})

	t.Run("inactive account rejected after credential check", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "banned@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, false)

		// Wrong password on an inactive account still reports bad
		// credentials, not account state.
		_, err := svc.Login(ctx, "banned@example.com", "wrong-password", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInvalidCredentials))

		_, err = svc.Login(ctx, "banned@example.com", "Correct-Horse-9", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrAccountInactive))
	})
}

func TestService_LogoutRevokesSession(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserProvider()
	registry := newFakeRegistry()
	svc := newTestService(t, users, registry)
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)

	result, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
	require.NoError(t, err)

	sessionID, err := svc.SessionIDFromToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, sessionID)

	require.NoError(t, svc.Logout(ctx, sessionID))

	// The signature is still good but the session is gone.
	_, err = svc.ValidateToken(ctx, result.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionRevoked))

	// The refresh token dies with the same session.
	_, err = svc.Refresh(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionRevoked))

	// Logging out twice is fine.
	require.NoError(t, svc.Logout(ctx, sessionID))
}

func TestService_LogoutAfterAccessExpiry(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserProvider()
	registry := newFakeRegistry()
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)

	// Access tokens expire immediately; the refresh token stays live.
	svc := newTestServiceWithAccessTTL(t, users, registry, -time.Minute)

	result, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, result.AccessToken)
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))

	// The expired access token still identifies its session for logout.
	sessionID, err := svc.SessionIDFromToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, sessionID)

	require.NoError(t, svc.Logout(ctx, sessionID))

	// The live refresh token must not survive the logout.
	_, err = svc.Refresh(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionRevoked))
}

func TestService_ValidateToken_RejectsRefreshToken(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserProvider()
	registry := newFakeRegistry()
	svc := newTestService(t, users, registry)
	seedUser(t, users, "rider@example.com", "Correct-Horse-9",
		[]string{auth.RoleClient}, true)

	result, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, result.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTokenInvalid))
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues new access token on same session", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		login, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
		require.NoError(t, err)

		refreshed, err := svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)

		claims, err := svc.ValidateToken(ctx, refreshed.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, login.SessionID, claims.SessionID)
	})

	t.Run("roles come from storage, not the old token", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		user := seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		login, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
		require.NoError(t, err)

		// Role granted after login shows up on the next refresh.
		user.Roles = []string{auth.RoleClient, auth.RoleDriver}
		users.add(user)

		refreshed, err := svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(ctx, refreshed.AccessToken)
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{auth.RoleClient, auth.RoleDriver}, claims.Roles)
	})

	t.Run("access token cannot be redeemed", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		login, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, login.AccessToken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrTokenInvalid))
	})

	t.Run("deactivated account cannot refresh", func(t *testing.T) {
		users := newFakeUserProvider()
		registry := newFakeRegistry()
		svc := newTestService(t, users, registry)
		user := seedUser(t, users, "rider@example.com", "Correct-Horse-9",
			[]string{auth.RoleClient}, true)

		login, err := svc.Login(ctx, "rider@example.com", "Correct-Horse-9", false)
		require.NoError(t, err)

		user.IsActive = false
		users.add(user)

		_, err = svc.Refresh(ctx, login.RefreshToken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrAccountInactive))
	})
}

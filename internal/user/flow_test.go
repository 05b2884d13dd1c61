// TransitBook | 2026
// flow_test.go

package user_test

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
	"github.com/transitbook/backend/internal/user"
)

type memRegistry struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRegistry) IsValid(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.revoked[sessionID], nil
}

func (m *memRegistry) Invalidate(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sessionID != "" {
		m.revoked[sessionID] = true
	}
	return nil
}

// Wires the real user service into the real auth service over in-memory
// storage and walks the whole account lifecycle.
func TestRegisterLoginLogoutFlow(t *testing.T) {
	ctx := context.Background()

	cfg := config.AuthConfig{
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		Issuer:              "transitbook-test",
		Audience:            "transitbook-api",
		AccessTokenTTL:      time.Hour,
		RememberTokenTTL:    7 * 24 * time.Hour,
		RefreshTokenTTL:     30 * 24 * time.Hour,
		RegistrationEnabled: true,
		BcryptCost:          bcrypt.MinCost,
	}

	hasher, err := core.NewPasswordHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)

	repo := newFakeRepo()
	userSvc := user.NewService(repo, hasher, cfg)
	registry := &memRegistry{revoked: make(map[string]bool)}
	authSvc := auth.NewService(userSvc, hasher, tokens, registry, cfg)

	// Register alice as a client.
	created, err := authSvc.Register(ctx, auth.RegistrationInput{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "Passw0rd!",
		Role:     auth.RoleClient,
	})
	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)

	// The same credentials log in immediately.
	login, err := authSvc.Login(ctx, "alice@example.com", "Passw0rd!", false)
	require.NoError(t, err)

	claims, err := authSvc.ValidateToken(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, []string{auth.RoleClient}, claims.Roles)

	// A role granted mid-session appears on refresh without a new login.
	require.NoError(t,
		userSvc.GrantRole(ctx, created.ID, auth.RoleDriver, "admin-1"))

	refreshed, err := authSvc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)

	refreshedClaims, err := authSvc.ValidateToken(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{auth.RoleClient, auth.RoleDriver}, refreshedClaims.Roles)

	// Logout kills every token of the session.
	require.NoError(t, authSvc.Logout(ctx, login.SessionID))

	_, err = authSvc.ValidateToken(ctx, login.AccessToken)
	assert.True(t, errors.Is(err, core.ErrSessionRevoked))

	_, err = authSvc.ValidateToken(ctx, refreshed.AccessToken)
	assert.True(t, errors.Is(err, core.ErrSessionRevoked))

	// A fresh login still works afterwards.
	again, err := authSvc.Login(ctx, "alice@example.com", "Passw0rd!", false)
	require.NoError(t, err)
	assert.NotEqual(t, login.SessionID, again.SessionID)
}

// TransitBook | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/transitbook/backend/internal/config"
	"github.com/transitbook/backend/internal/core"
	"github.com/transitbook/backend/internal/middleware"
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	Roles        []string
	CreatedAt    time.Time
}

type RegistrationInput struct {
	Email    string
	Name     string
	Password string
	Phone    string
	Role     string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Register(ctx context.Context, input RegistrationInput) (*UserInfo, error)
}

type LoginResult struct {
	User             *UserInfo
	AccessToken      string
	RefreshToken     string
	SessionID        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

type RefreshResult struct {
	User        *UserInfo
	AccessToken string
	ExpiresAt   time.Time
}

type Service struct {
	users       UserProvider
	hasher      *core.PasswordHasher
	tokens      *TokenService
	registry    SessionRegistry
	accessTTL   time.Duration
	rememberTTL time.Duration
}

func NewService(
	users UserProvider,
	hasher *core.PasswordHasher,
	tokens *TokenService,
	registry SessionRegistry,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		registry:    registry,
		accessTTL:   cfg.AccessTokenTTL,
		rememberTTL: cfg.RememberTokenTTL,
	}
}

// Login validates credentials and issues a fresh session with its token
// pair. Unknown email and wrong password are indistinguishable to the
// caller, and the password check runs either way so response timing does
// not reveal account existence.
func (s *Service) Login(
	ctx context.Context,
	email, password string,
	remember bool,
) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // anti-enumeration: burn a hash verify anyway
			_, _ = s.hasher.VerifyTimingSafe(ctx, password, nil)
			return nil, fmt.Errorf("login: %w", core.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login: get user: %w", err)
	}

	valid, err := s.hasher.VerifyTimingSafe(ctx, password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: verify password: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("login: %w", core.ErrInvalidCredentials)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("login: %w", core.ErrAccountInactive)
	}

	sessionID := uuid.New().String()

	ttl := s.accessTTL
	if remember {
		ttl = s.rememberTTL
	}

	accessToken, expiresAt, err := s.tokens.IssueAccessToken(
		user.ID,
		user.Roles,
		sessionID,
		ttl,
	)
	if err != nil {
		return nil, fmt.Errorf("login: issue access token: %w", err)
	}

	refreshToken, refreshExpiresAt, err := s.tokens.IssueRefreshToken(
		user.ID,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("login: issue refresh token: %w", err)
	}

	return &LoginResult{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		SessionID:        sessionID,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Logout invalidates the session. It never fails for registry-state
// reasons: revoking an unknown or already-revoked session is a success.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.registry.Invalidate(ctx, sessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// SessionIDFromToken extracts the session id from any token of the pair.
// The signature is checked but the validity window is not: logout must
// succeed even when the access token has already expired.
func (s *Service) SessionIDFromToken(tokenString string) (string, error) {
	return s.tokens.ExtractSessionID(tokenString)
}

// ValidateToken verifies signature and expiry, then checks the session
// registry. The two failure modes are distinct internally; transport
// code maps both to a 401.
func (s *Service) ValidateToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessClaims, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	if !claims.IsAccess() {
		return nil, fmt.Errorf("validate token: wrong token type: %w", core.ErrTokenInvalid)
	}

	valid, err := s.registry.IsValid(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("validate token: check registry: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("validate token: %w", core.ErrSessionRevoked)
	}

	return &middleware.AccessClaims{
		UserID:    claims.UserID,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Refresh redeems a refresh token for a new access token bound to the
// same session. Roles are re-resolved from storage, never taken from
// the old token.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
) (*RefreshResult, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, err
	}

	if !claims.IsRefresh() {
		return nil, fmt.Errorf("refresh: wrong token type: %w", core.ErrTokenInvalid)
	}

	valid, err := s.registry.IsValid(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("refresh: check registry: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("refresh: %w", core.ErrSessionRevoked)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("refresh: get user: %w", err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("refresh: %w", core.ErrAccountInactive)
	}

	accessToken, expiresAt, err := s.tokens.IssueAccessToken(
		user.ID,
		user.Roles,
		claims.SessionID,
		s.accessTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh: issue access token: %w", err)
	}

	return &RefreshResult{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) Register(
	ctx context.Context,
	input RegistrationInput,
) (*UserInfo, error) {
	user, err := s.users.Register(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserInfo, error) {
	return s.users.GetByID(ctx, userID)
}

// IsSessionValid exposes the registry check for transport middleware.
func (s *Service) IsSessionValid(
	ctx context.Context,
	sessionID string,
) (bool, error) {
	return s.registry.IsValid(ctx, sessionID)
}

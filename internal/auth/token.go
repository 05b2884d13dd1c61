// TransitBook | 2026
// token.go

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/transitbook/backend/internal/config"
	"github.com/transitbook/backend/internal/core"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Claims struct {
	UserID    string
	Roles     []string
	SessionID string
	TokenType string
	ExpiresAt time.Time
}

// TokenService signs and verifies the access/refresh token pair. The
// signing key is derived once from the configured secret; rotation is a
// redeploy, not a runtime operation.
type TokenService struct {
	key        jwk.Key
	issuer     string
	audience   string
	refreshTTL time.Duration
}

func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	key, err := jwk.Import([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return &TokenService{
		key:        key,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

func (s *TokenService) IssueAccessToken(
	userID string,
	roles []string,
	sessionID string,
	ttl time.Duration,
) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("roles", roles).
		Claim("sid", sessionID).
		Claim("typ", tokenTypeAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return string(signed), expiresAt, nil
}

// IssueRefreshToken carries no roles claim: roles are re-resolved from
// storage when the token is redeemed, so a 30-day token cannot bake in
// a stale capability set.
func (s *TokenService) IssueRefreshToken(
	userID, sessionID string,
) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.refreshTTL)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("sid", sessionID).
		Claim("typ", tokenTypeRefresh).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build refresh token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return string(signed), expiresAt, nil
}

// Verify checks signature and validity window. Bad signature and expired
// token are deliberately indistinguishable to callers.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: missing subject: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if getErr := token.Get("typ", &tokenType); getErr != nil {
		return nil, fmt.Errorf("verify token: missing typ claim: %w", core.ErrTokenInvalid)
	}

	var sessionID string
	if getErr := token.Get("sid", &sessionID); getErr != nil || sessionID == "" {
		return nil, fmt.Errorf("verify token: missing sid claim: %w", core.ErrTokenInvalid)
	}

	claims := &Claims{
		UserID:    subject,
		SessionID: sessionID,
		TokenType: tokenType,
	}

	if expiresAt, hasExp := token.Expiration(); hasExp {
		claims.ExpiresAt = expiresAt
	}

	if tokenType == tokenTypeAccess {
		var rawRoles []any
		if getErr := token.Get("roles", &rawRoles); getErr != nil {
			return nil, fmt.Errorf("verify token: missing roles claim: %w", core.ErrTokenInvalid)
		}
		claims.Roles = make([]string, 0, len(rawRoles))
		for _, r := range rawRoles {
			role, isString := r.(string)
			if !isString {
				return nil, fmt.Errorf("verify token: malformed roles claim: %w", core.ErrTokenInvalid)
			}
			claims.Roles = append(claims.Roles, role)
		}
	}

	return claims, nil
}

// ExtractSessionID checks the signature but not the validity window.
// Logout needs the sid from a token that may already be expired; an
// expired session is still a session worth revoking.
func (s *TokenService) ExtractSessionID(tokenString string) (string, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return "", fmt.Errorf("extract session: %w", core.ErrTokenInvalid)
	}

	var sessionID string
	if getErr := token.Get("sid", &sessionID); getErr != nil || sessionID == "" {
		return "", fmt.Errorf("extract session: missing sid claim: %w", core.ErrTokenInvalid)
	}

	return sessionID, nil
}

func (c *Claims) IsAccess() bool {
	return c.TokenType == tokenTypeAccess
}

func (c *Claims) IsRefresh() bool {
	return c.TokenType == tokenTypeRefresh
}

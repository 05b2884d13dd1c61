// TransitBook | 2026
// dto.go

package auth

import (
	"time"
	"unicode/utf8"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Remember bool   `json:"remember"`
}

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Name     string `json:"name"     validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Phone    string `json:"phone"    validate:"omitempty,e164"`
	UserType string `json:"userType" validate:"required,oneof=CLIENT DRIVER ADMIN BLOG_EDITOR"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"        validate:"required,min=32,max=512"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Roles      []string  `json:"roles"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type RefreshResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordMeetsPolicy enforces the credential policy shared by
// registration and password reset: at least eight characters with one
// uppercase letter, one lowercase letter, and one digit. The policy is
// complete on its own so that callers behind other transports get the
// same floor as the HTTP request validation.
func PasswordMeetsPolicy(password string) bool {
	if utf8.RuneCountInString(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

func toUserResponse(user *UserInfo) UserResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Roles:      roles,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}

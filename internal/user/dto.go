// TransitBook | 2026
// dto.go

package user

import (
	"time"

	"github.com/transitbook/backend/internal/auth"
)

type UpdateProfileRequest struct {
	Name  string  `json:"name" validate:"omitempty,min=1,max=100"`
	Phone *string `json:"phone" validate:"omitempty,e164"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type ProfileResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Roles      []string  `json:"roles"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toProfileResponse(info *auth.UserInfo) ProfileResponse {
	return ProfileResponse{
		ID:         info.ID,
		Email:      info.Email,
		Name:       info.Name,
		Phone:      info.Phone,
		Roles:      info.Roles,
		IsVerified: info.IsVerified,
		CreatedAt:  info.CreatedAt,
	}
}

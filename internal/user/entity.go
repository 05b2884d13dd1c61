// TransitBook | 2026
// entity.go

package user

import (
	"fmt"
	"time"

	"github.com/transitbook/backend/internal/auth"
)

type User struct {
	ID         string    `db:"id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	Phone      *string   `db:"phone"`
	IsActive   bool      `db:"is_active"`
	IsVerified bool      `db:"is_verified"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Credential is the single live password hash for a user. Replacing the
// hash is an update on this row, never an insert.
type Credential struct {
	UserID       string    `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RoleAssignment grants one capability. (user_id, role) is unique: a
// role can be deactivated and reactivated but never duplicated.
type RoleAssignment struct {
	UserID     string    `db:"user_id"`
	Role       string    `db:"role"`
	IsActive   bool      `db:"is_active"`
	AssignedBy *string   `db:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at"`
}

// RoleProfile is the tagged variant over the four role kinds. Profile
// creation happens in the same transaction as the role assignment, so
// neither can exist without the other.
type RoleProfile interface {
	ProfileRole() string
}

type ClientProfile struct {
	UserID         string    `db:"user_id"`
	Tier           string    `db:"tier"`
	CompletedTrips int       `db:"completed_trips"`
	CreatedAt      time.Time `db:"created_at"`
}

func (ClientProfile) ProfileRole() string { return auth.RoleClient }

type DriverProfile struct {
	UserID        string    `db:"user_id"`
	LicenseNumber string    `db:"license_number"`
	IsApproved    bool      `db:"is_approved"`
	IsAvailable   bool      `db:"is_available"`
	CreatedAt     time.Time `db:"created_at"`
}

func (DriverProfile) ProfileRole() string { return auth.RoleDriver }

type BlogEditorProfile struct {
	UserID     string    `db:"user_id"`
	CanPublish bool      `db:"can_publish"`
	CreatedAt  time.Time `db:"created_at"`
}

func (BlogEditorProfile) ProfileRole() string { return auth.RoleBlogEditor }

type AdminProfile struct {
	UserID      string    `db:"user_id"`
	IsSuperuser bool      `db:"is_superuser"`
	CreatedAt   time.Time `db:"created_at"`
}

func (AdminProfile) ProfileRole() string { return auth.RoleAdmin }

// NewProfileForRole builds the role-appropriate profile with explicit
// defaults. A fresh driver is unapproved and unavailable until document
// verification completes; a fresh client starts on the standard tier.
func NewProfileForRole(role, userID string) (RoleProfile, error) {
	switch role {
	case auth.RoleClient:
		return ClientProfile{
			UserID:         userID,
			Tier:           "standard",
			CompletedTrips: 0,
		}, nil
	case auth.RoleDriver:
		return DriverProfile{
			UserID:        userID,
			LicenseNumber: "",
			IsApproved:    false,
			IsAvailable:   false,
		}, nil
	case auth.RoleBlogEditor:
		return BlogEditorProfile{
			UserID:     userID,
			CanPublish: false,
		}, nil
	case auth.RoleAdmin:
		return AdminProfile{
			UserID:      userID,
			IsSuperuser: false,
		}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

type DriverDocument struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Type       string    `db:"doc_type"`
	Status     string    `db:"status"`
	UploadedAt time.Time `db:"uploaded_at"`
}

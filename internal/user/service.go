// TransitBook | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/transitbook/backend/internal/auth"
	"github.com/transitbook/backend/internal/config"
	"github.com/transitbook/backend/internal/core"
)

type Service struct {
	repo                Repository
	hasher              *core.PasswordHasher
	registrationEnabled bool
}

func NewService(
	repo Repository,
	hasher *core.PasswordHasher,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		repo:                repo,
		hasher:              hasher,
		registrationEnabled: cfg.RegistrationEnabled,
	}
}

// Register creates the account and its initial role in one atomic
// step. The disabled check runs before any other validation so a
// closed instance leaks nothing about input validity.
func (s *Service) Register(
	ctx context.Context,
	input auth.RegistrationInput,
) (*auth.UserInfo, error) {
	if !s.registrationEnabled {
		return nil, core.ErrRegistrationDisabled
	}

	if !auth.ValidRole(input.Role) {
		return nil, core.ValidationError(
			fmt.Sprintf("unknown role %q", input.Role))
	}

	if !auth.PasswordMeetsPolicy(input.Password) {
		return nil, core.ValidationError(
			"password must contain an uppercase letter, a lowercase letter, and a digit")
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:         uuid.New().String(),
		Email:      input.Email,
		Name:       input.Name,
		IsActive:   true,
		IsVerified: false,
	}
	if input.Phone != "" {
		phone := input.Phone
		u.Phone = &phone
	}

	assignment := &RoleAssignment{
		UserID:   u.ID,
		Role:     input.Role,
		IsActive: true,
	}

	profile, err := NewProfileForRole(input.Role, u.ID)
	if err != nil {
		return nil, core.ValidationError(err.Error())
	}

	if err := s.repo.CreateUserTx(ctx, u, hash, assignment, profile); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, err
	}

	return toUserInfo(u, []string{input.Role}, ""), nil
}

// GetByEmail returns the user with the password hash populated. Only
// the login path should call this.
func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	roles, err := s.activeRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.GetCredential(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return toUserInfo(u, roles, cred.PasswordHash), nil
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	roles, err := s.activeRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return toUserInfo(u, roles, ""), nil
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	name string,
	phone *string,
) (*auth.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		u.Name = name
	}
	if phone != nil {
		u.Phone = phone
	}

	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	roles, err := s.activeRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	return toUserInfo(u, roles, ""), nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	cred, err := s.repo.GetCredential(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, cred.PasswordHash) {
		return core.InvalidCredentialsError()
	}

	if !auth.PasswordMeetsPolicy(newPassword) {
		return core.ValidationError(
			"password must contain an uppercase letter, a lowercase letter, and a digit")
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdateCredential(ctx, userID, hash)
}

// GrantRole adds a role to an existing user, creating the matching
// profile if this is the first grant of that role.
func (s *Service) GrantRole(
	ctx context.Context,
	userID, role, grantedBy string,
) error {
	if !auth.ValidRole(role) {
		return core.ValidationError(fmt.Sprintf("unknown role %q", role))
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}

	profile, err := NewProfileForRole(role, userID)
	if err != nil {
		return core.ValidationError(err.Error())
	}

	assignment := &RoleAssignment{
		UserID:     userID,
		Role:       role,
		IsActive:   true,
		AssignedBy: &grantedBy,
	}

	return s.repo.GrantRole(ctx, assignment, profile)
}

// RevokeRole deactivates the assignment. The profile row stays so a
// later re-grant picks up where the user left off.
func (s *Service) RevokeRole(ctx context.Context, userID, role string) error {
	if !auth.ValidRole(role) {
		return core.ValidationError(fmt.Sprintf("unknown role %q", role))
	}

	roles, err := s.activeRoles(ctx, userID)
	if err != nil {
		return err
	}
	if len(roles) == 1 && roles[0] == role {
		return &core.AppError{
			Err:     core.ErrForbidden,
			Message: "cannot revoke a user's last active role",
			Status:  http.StatusConflict,
			Code:    "LAST_ROLE",
		}
	}

	return s.repo.DeactivateRole(ctx, userID, role)
}

func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	return s.repo.DeactivateUser(ctx, userID)
}

// DriverVerification reports document completeness for a driver. The
// caller must hold an active DRIVER assignment.
func (s *Service) DriverVerification(
	ctx context.Context,
	userID string,
) (*auth.VerificationReport, error) {
	assignments, err := s.repo.ListRoleAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !auth.HasRole(toRoleGrants(assignments), auth.RoleDriver) {
		return nil, core.ForbiddenError("driver role required")
	}

	docs, err := s.repo.ListDriverDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	authDocs := make([]auth.DriverDocument, 0, len(docs))
	for _, d := range docs {
		authDocs = append(authDocs, auth.DriverDocument{
			Type:       d.Type,
			Status:     auth.DocumentState(d.Status),
			UploadedAt: d.UploadedAt,
		})
	}

	report := auth.VerifyDocuments(authDocs, auth.RequiredDriverDocuments)
	return &report, nil
}

func (s *Service) activeRoles(
	ctx context.Context,
	userID string,
) ([]string, error) {
	assignments, err := s.repo.ListRoleAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	return auth.ActiveRoles(toRoleGrants(assignments)), nil
}

func toRoleGrants(assignments []RoleAssignment) []auth.RoleGrant {
	grants := make([]auth.RoleGrant, 0, len(assignments))
	for _, a := range assignments {
		grants = append(grants, auth.RoleGrant{
			Role:     a.Role,
			IsActive: a.IsActive,
		})
	}
	return grants
}

func toUserInfo(u *User, roles []string, passwordHash string) *auth.UserInfo {
	info := &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: passwordHash,
		IsActive:     u.IsActive,
		IsVerified:   u.IsVerified,
		Roles:        roles,
		CreatedAt:    u.CreatedAt,
	}
	if u.Phone != nil {
		info.Phone = *u.Phone
	}
	return info
}

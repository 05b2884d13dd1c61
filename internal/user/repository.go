// TransitBook | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/transitbook/backend/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetCredential(ctx context.Context, userID string) (*Credential, error)
	UpdateCredential(ctx context.Context, userID, passwordHash string) error
	CreateUserTx(
		ctx context.Context,
		u *User,
		passwordHash string,
		assignment *RoleAssignment,
		profile RoleProfile,
	) error
	ListRoleAssignments(ctx context.Context, userID string) ([]RoleAssignment, error)
	GrantRole(
		ctx context.Context,
		assignment *RoleAssignment,
		profile RoleProfile,
	) error
	DeactivateRole(ctx context.Context, userID, role string) error
	UpdateUser(ctx context.Context, u *User) error
	DeactivateUser(ctx context.Context, userID string) error
	ListDriverDocuments(ctx context.Context, userID string) ([]DriverDocument, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, name, phone, is_active, is_verified,
		       created_at, updated_at
		FROM users
		WHERE id = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `
		SELECT id, email, name, phone, is_active, is_verified,
		       created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)`

	var u User
	err := r.db.GetContext(ctx, &u, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &u, nil
}

func (r *repository) GetCredential(
	ctx context.Context,
	userID string,
) (*Credential, error) {
	query := `
		SELECT user_id, password_hash, created_at, updated_at
		FROM credentials
		WHERE user_id = $1`

	var c Credential
	err := r.db.GetContext(ctx, &c, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get credential: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	return &c, nil
}

func (r *repository) UpdateCredential(
	ctx context.Context,
	userID, passwordHash string,
) error {
	query := `
		UPDATE credentials
		SET password_hash = $2, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update credential: %w", core.ErrNotFound)
	}

	return nil
}

// CreateUserTx performs the four registration writes as one atomic
// unit: user, credential, initial role assignment, and role profile.
// Any failure rolls all of them back.
func (r *repository) CreateUserTx(
	ctx context.Context,
	u *User,
	passwordHash string,
	assignment *RoleAssignment,
	profile RoleProfile,
) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		userQuery := `
			INSERT INTO users (id, email, name, phone, is_active, is_verified)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at`

		if err := tx.QueryRowxContext(ctx, userQuery,
			u.ID,
			u.Email,
			u.Name,
			u.Phone,
			u.IsActive,
			u.IsVerified,
		).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		credQuery := `
			INSERT INTO credentials (user_id, password_hash)
			VALUES ($1, $2)`

		if _, err := tx.ExecContext(ctx, credQuery, u.ID, passwordHash); err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}

		roleQuery := `
			INSERT INTO user_roles (user_id, role, is_active, assigned_by)
			VALUES ($1, $2, $3, $4)
			RETURNING assigned_at`

		if err := tx.QueryRowxContext(ctx, roleQuery,
			assignment.UserID,
			assignment.Role,
			assignment.IsActive,
			assignment.AssignedBy,
		).Scan(&assignment.AssignedAt); err != nil {
			return fmt.Errorf("insert role assignment: %w", err)
		}

		if err := insertProfile(ctx, tx, profile); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func insertProfile(ctx context.Context, tx *sqlx.Tx, profile RoleProfile) error {
	switch p := profile.(type) {
	case ClientProfile:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO client_profiles (user_id, tier, completed_trips)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING`,
			p.UserID, p.Tier, p.CompletedTrips)
		if err != nil {
			return fmt.Errorf("insert client profile: %w", err)
		}
	case DriverProfile:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO driver_profiles (user_id, license_number, is_approved, is_available)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO NOTHING`,
			p.UserID, p.LicenseNumber, p.IsApproved, p.IsAvailable)
		if err != nil {
			return fmt.Errorf("insert driver profile: %w", err)
		}
	case BlogEditorProfile:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blog_editor_profiles (user_id, can_publish)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING`,
			p.UserID, p.CanPublish)
		if err != nil {
			return fmt.Errorf("insert blog editor profile: %w", err)
		}
	case AdminProfile:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO admin_profiles (user_id, is_superuser)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING`,
			p.UserID, p.IsSuperuser)
		if err != nil {
			return fmt.Errorf("insert admin profile: %w", err)
		}
	default:
		return fmt.Errorf("unknown profile type %T", profile)
	}

	return nil
}

func (r *repository) ListRoleAssignments(
	ctx context.Context,
	userID string,
) ([]RoleAssignment, error) {
	query := `
		SELECT user_id, role, is_active, assigned_by, assigned_at
		FROM user_roles
		WHERE user_id = $1
		ORDER BY assigned_at`

	var assignments []RoleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}

	return assignments, nil
}

// GrantRole reactivates an existing assignment or creates a new one
// together with its profile. (user_id, role) stays unique either way.
func (r *repository) GrantRole(
	ctx context.Context,
	assignment *RoleAssignment,
	profile RoleProfile,
) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		roleQuery := `
			INSERT INTO user_roles (user_id, role, is_active, assigned_by)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (user_id, role)
			DO UPDATE SET is_active = TRUE, assigned_by = $3, assigned_at = NOW()`

		if _, err := tx.ExecContext(ctx, roleQuery,
			assignment.UserID,
			assignment.Role,
			assignment.AssignedBy,
		); err != nil {
			return fmt.Errorf("upsert role assignment: %w", err)
		}

		return insertProfile(ctx, tx, profile)
	})
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("grant role: %w", core.ErrNotFound)
		}
		return fmt.Errorf("grant role: %w", err)
	}

	return nil
}

func (r *repository) DeactivateRole(
	ctx context.Context,
	userID, role string,
) error {
	query := `
		UPDATE user_roles
		SET is_active = FALSE
		WHERE user_id = $1 AND role = $2`

	result, err := r.db.ExecContext(ctx, query, userID, role)
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deactivate role: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpdateUser(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET name = $2, phone = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &u.UpdatedAt, query, u.ID, u.Name, u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) DeactivateUser(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deactivate user: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListDriverDocuments(
	ctx context.Context,
	userID string,
) ([]DriverDocument, error) {
	query := `
		SELECT id, user_id, doc_type, status, uploaded_at
		FROM driver_documents
		WHERE user_id = $1
		ORDER BY uploaded_at DESC`

	var docs []DriverDocument
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list driver documents: %w", err)
	}

	return docs, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

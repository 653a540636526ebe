package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, tenant_id, name, email, role, password_hash,
	failed_login_attempts, locked_until,
	COALESCE(reset_token_hash, ''), reset_password_expires,
	created_at, updated_at`

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, tenant_id, name, email, role, password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID, user.TenantID, user.Name, user.Email, string(user.Role), user.PasswordHash,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.queryOne(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.queryOne(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email)
}

// GetOwner retrieves the owner of a tenant
func (r *UserRepository) GetOwner(ctx context.Context, tenantID string) (*identity.User, error) {
	return r.queryOne(ctx, `SELECT`+userColumns+` FROM users WHERE tenant_id = $1 AND role = 'owner'`, tenantID)
}

// GetByResetToken retrieves the user holding an unexpired reset token hash
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*identity.User, error) {
	if tokenHash == "" {
		return nil, identity.ErrUserNotFound
	}
	return r.queryOne(ctx, `SELECT`+userColumns+` FROM users
		WHERE reset_token_hash = $1 AND reset_password_expires > $2`, tokenHash, now)
}

// ListByTenant lists the users of a tenant, oldest first
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*identity.User, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	rows, err := r.db.pool.Query(ctx, `SELECT`+userColumns+` FROM users
		WHERE tenant_id = $1
		ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*identity.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update updates profile, role, password and reset token fields
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			name = $3,
			email = $4,
			role = $5,
			password_hash = $6,
			reset_token_hash = $7,
			reset_password_expires = $8,
			updated_at = $9
		WHERE id = $1 AND tenant_id = $2
	`,
		user.ID, user.TenantID, user.Name, user.Email, string(user.Role), user.PasswordHash,
		nullable(user.ResetTokenHash), user.ResetPasswordExpires, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// UpdateLockout updates user lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.pool.Exec(ctx, query, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update user lockout status: %w", err)
	}
	return nil
}

// Delete removes a user of the given tenant
func (r *UserRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	result, err := r.db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...any) (*identity.User, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	user, err := scanUser(r.db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var (
		user identity.User
		role string
	)
	err := row.Scan(
		&user.ID, &user.TenantID, &user.Name, &user.Email, &role, &user.PasswordHash,
		&user.FailedLoginAttempts, &user.LockedUntil,
		&user.ResetTokenHash, &user.ResetPasswordExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = identity.Role(role)
	return &user, nil
}

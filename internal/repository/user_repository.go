package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"smartcampus/api/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username, email or external id already registered")
)

const userColumns = `
	u.id, u.external_id, u.username, u.email, u.first_name, u.last_name, u.phone,
	u.password_hash, u.role_id, r.role_description, u.email_verified, u.created_at, u.updated_at
`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, external_id, username, email, first_name, last_name, phone,
			password_hash, role_id, email_verified, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		int(user.Role.ID),
		user.EmailVerified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		if isForeignKeyViolation(err) {
			return ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users u JOIN roles r ON r.role_id = u.role_id
		WHERE u.username = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users u JOIN roles r ON r.role_id = u.role_id
		WHERE u.email = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users u JOIN roles r ON r.role_id = u.role_id
		WHERE u.id = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) List(ctx context.Context, limit int, offset int) ([]models.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users u JOIN roles r ON r.role_id = u.role_id
		ORDER BY u.created_at, u.id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Update applies the non-nil fields of update. Changing the email clears
// email_verified; the new address has to be verified again.
func (r *UserRepository) Update(ctx context.Context, id string, update models.UserUpdate) (models.User, error) {
	const query = `
		UPDATE users
		SET first_name     = COALESCE($2, first_name),
		    last_name      = COALESCE($3, last_name),
		    email          = COALESCE($4, email),
		    email_verified = CASE WHEN $4::text IS NOT NULL AND $4::text <> email THEN FALSE ELSE email_verified END,
		    role_id        = COALESCE($5, role_id),
		    updated_at     = NOW()
		WHERE id = $1
	`

	var roleID *int
	if update.Role != nil {
		v := int(*update.Role)
		roleID = &v
	}

	cmd, err := r.db.Exec(ctx, query, id, update.FirstName, update.LastName, update.Email, roleID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicateUser
		}
		if isForeignKeyViolation(err) {
			return models.User{}, ErrRoleNotFound
		}
		return models.User{}, err
	}
	if cmd.RowsAffected() == 0 {
		return models.User{}, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user   models.User
		roleID int
	)
	if err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.PasswordHash,
		&roleID,
		&user.Role.Description,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.Role.ID = models.RoleID(roleID)
	return user, nil
}

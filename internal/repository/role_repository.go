package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"smartcampus/api/internal/models"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository struct {
	db DB
}

func NewRoleRepository(db DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// EnsureDefaults inserts any missing reference roles. Existing rows are left
// alone so a renamed description survives restarts.
func (r *RoleRepository) EnsureDefaults(ctx context.Context, roles []models.Role) error {
	const query = `
		INSERT INTO roles (role_id, role_description)
		VALUES ($1, $2)
		ON CONFLICT (role_id) DO NOTHING
	`
	for _, role := range roles {
		if _, err := r.db.Exec(ctx, query, int(role.ID), role.Description); err != nil {
			return fmt.Errorf("seed role %d: %w", role.ID, err)
		}
	}
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id models.RoleID) (models.Role, error) {
	const query = `SELECT role_id, role_description FROM roles WHERE role_id = $1`

	var (
		role   models.Role
		roleID int
	)
	if err := r.db.QueryRow(ctx, query, int(id)).Scan(&roleID, &role.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	role.ID = models.RoleID(roleID)
	return role, nil
}
